package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// FilmState はパイプラインの段階境界ごとに永続化される全体状態です。
// どの段階で中断しても、この構造体だけから続きを再構成できます。
type FilmState struct {
	RunID          string           `json:"run_id"`
	Plan           *StoryPlan       `json:"plan"`
	Characters     CharacterAssets  `json:"characters,omitempty"`
	Keyframes      []*KeyframeAsset `json:"keyframes,omitempty"`
	Videos         []*VideoAsset    `json:"videos,omitempty"`
	FinalVideoPath string           `json:"final_video_path,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewFilmState は脚本確定直後の初期状態を作ります。
func NewFilmState(runID string, plan *StoryPlan) *FilmState {
	return &FilmState{
		RunID:      runID,
		Plan:       plan,
		Characters: make(CharacterAssets),
	}
}

// KeyframeByScene はシーンIDでキーフレームを引きます。見つからなければ nil。
func (s *FilmState) KeyframeByScene(sceneID int) *KeyframeAsset {
	for _, kf := range s.Keyframes {
		if kf.SceneID == sceneID {
			return kf
		}
	}
	return nil
}

// VideoByScene はシーンIDで動画クリップを引きます。見つからなければ nil。
func (s *FilmState) VideoByScene(sceneID int) *VideoAsset {
	for _, v := range s.Videos {
		if v.SceneID == sceneID {
			return v
		}
	}
	return nil
}

// SortAssets はシーンIDの昇順にアセットを並べ直します。
// 永続化前に呼び、読み手がシーン順で差分を追えるようにします。
func (s *FilmState) SortAssets() {
	sort.Slice(s.Keyframes, func(i, j int) bool { return s.Keyframes[i].SceneID < s.Keyframes[j].SceneID })
	sort.Slice(s.Videos, func(i, j int) bool { return s.Videos[i].SceneID < s.Videos[j].SceneID })
}

// Encode は状態をインデント付きJSONに直列化します。
func (s *FilmState) Encode() ([]byte, error) {
	s.SortAssets()
	s.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("状態の直列化に失敗しました: %w", err)
	}
	return data, nil
}

// DecodeFilmState はJSONから状態を復元します。
func DecodeFilmState(data []byte) (*FilmState, error) {
	var state FilmState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("状態の復元に失敗しました: %w", err)
	}
	if state.Plan == nil {
		return nil, fmt.Errorf("状態に脚本が含まれていません")
	}
	return &state, nil
}
