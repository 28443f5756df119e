package web

import (
	"sync"
	"time"

	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/observer"
)

// ProgressObserver はパイプラインの進行をWebSocketクライアントへ中継するのだ。
// 最新のFilmStateも保持して /api/state から参照できるようにする。
type ProgressObserver struct {
	hub *Hub

	mu    sync.RWMutex
	state *domain.FilmState
}

var _ observer.Observer = (*ProgressObserver)(nil)

func NewProgressObserver(hub *Hub) *ProgressObserver {
	return &ProgressObserver{hub: hub}
}

func (o *ProgressObserver) Notify(event observer.Event) {
	o.hub.Broadcast(map[string]any{
		"type": "progress",
		"data": event,
		"time": time.Now().Unix(),
	})
}

func (o *ProgressObserver) StateUpdated(state *domain.FilmState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()

	o.hub.Broadcast(map[string]any{
		"type": "state",
		"data": state,
		"time": time.Now().Unix(),
	})
}

// State は最後に通知されたFilmStateを返すのだ。未通知ならnil。
func (o *ProgressObserver) State() *domain.FilmState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}
