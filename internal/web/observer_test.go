package web

import (
	"encoding/json"
	"testing"

	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/observer"
)

func TestProgressObserverKeepsLatestState(t *testing.T) {
	hub := NewHub()
	obs := NewProgressObserver(hub)

	if obs.State() != nil {
		t.Fatalf("通知前はnilのはずなのだ")
	}

	state := &domain.FilmState{RunID: "run-1", Plan: &domain.StoryPlan{Title: "t", Style: "s"}}
	obs.StateUpdated(state)

	got := obs.State()
	if got == nil || got.RunID != "run-1" {
		t.Errorf("最後に通知された状態が返るはずなのだ: %+v", got)
	}
}

func TestHubBroadcastEnqueuesJSON(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(map[string]any{
		"type": "progress",
		"data": observer.Event{RunID: "run-1", Stage: observer.StagePortraits, Kind: "started"},
	})

	select {
	case raw := <-hub.broadcast:
		var msg struct {
			Type string `json:"type"`
			Data struct {
				RunID string `json:"run_id"`
				Stage string `json:"stage"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("JSONとして読めるはずなのだ: %v", err)
		}
		if msg.Type != "progress" || msg.Data.Stage != "portraits" {
			t.Errorf("ペイロードが崩れているのだ: %+v", msg)
		}
	default:
		t.Fatalf("ブロードキャストキューに1件入っているはずなのだ")
	}
}
