// Package observer はパイプラインの進行を外部へ通知するための口です。
package observer

import "github.com/shouni/go-cinema-kit/pkg/domain"

// Stage はパイプラインの工程名です。
type Stage string

const (
	StagePlanning   Stage = "planning"
	StagePortraits  Stage = "portraits"
	StageKeyframes  Stage = "keyframes"
	StageVideos     Stage = "videos"
	StageStoryboard Stage = "storyboard"
	StageAssembly   Stage = "assembly"
)

// Event は観測者へ流す進行通知1件分です。
type Event struct {
	RunID   string  `json:"run_id"`
	Stage   Stage   `json:"stage"`
	Kind    string  `json:"kind"` // started / completed / failed
	Message string  `json:"message,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Observer は進行通知の受け手です。実装は処理をブロックしてはいけません。
type Observer interface {
	Notify(event Event)
	StateUpdated(state *domain.FilmState)
}

// NullObserver は何もしない観測者です。通知先が不要な実行で使います。
type NullObserver struct{}

func (NullObserver) Notify(Event)                   {}
func (NullObserver) StateUpdated(*domain.FilmState) {}

// Multi は複数の観測者へ同じ通知を配ります。
type Multi []Observer

func (m Multi) Notify(event Event) {
	for _, o := range m {
		o.Notify(event)
	}
}

func (m Multi) StateUpdated(state *domain.FilmState) {
	for _, o := range m {
		o.StateUpdated(state)
	}
}
