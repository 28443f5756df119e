package history

import (
	"testing"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

func TestCollectRecords(t *testing.T) {
	score := func(v float64) *domain.ConsistencyScore {
		return &domain.ConsistencyScore{OverallScore: v}
	}
	state := &domain.FilmState{
		RunID: "run-1",
		Plan:  &domain.StoryPlan{Title: "t", Style: "s"},
		Characters: domain.CharacterAssets{
			"ユウ": {Name: "ユウ", PortraitPath: "out/characters/ユウ_v2.jpg", Score: score(0.91), GenerationAttempts: 2},
		},
		Keyframes: []*domain.KeyframeAsset{
			{SceneID: 1, KeyframePath: "out/keyframes/scene_1_v1.jpg", Score: score(0.75), GenerationAttempts: 1, EditPasses: 2},
		},
		Videos: []*domain.VideoAsset{
			{SceneID: 1, VideoPath: "out/videos/scene_1_v1.mp4", Score: score(0.85), CorrectionPasses: 1},
		},
	}

	s := &Store{threshold: 0.80}
	records := s.collectRecords(state)

	if len(records) != 3 {
		t.Fatalf("記録が3件になるはずなのだ: got %d", len(records))
	}

	byKind := map[string]AssetRecord{}
	for _, r := range records {
		byKind[r.Kind] = r
	}

	t.Run("ポートレートは合格扱い", func(t *testing.T) {
		rec := byKind["portrait"]
		if !rec.Accepted {
			t.Errorf("0.91は閾値0.80を超えているので合格のはずなのだ")
		}
		if rec.Attempts != 2 {
			t.Errorf("試行回数が合わないのだ: got %d", rec.Attempts)
		}
	})

	t.Run("キーフレームは不合格でも記録される", func(t *testing.T) {
		rec := byKind["keyframe"]
		if rec.Accepted {
			t.Errorf("0.75は閾値未満なので不合格のはずなのだ")
		}
		if rec.Attempts != 3 {
			t.Errorf("生成+編集の合計回数になるはずなのだ: got %d", rec.Attempts)
		}
	})

	t.Run("動画は修正回数+初回で数える", func(t *testing.T) {
		rec := byKind["video"]
		if rec.Attempts != 2 {
			t.Errorf("修正1回なら合計2回のはずなのだ: got %d", rec.Attempts)
		}
		if !rec.Accepted {
			t.Errorf("0.85は合格のはずなのだ")
		}
	})
}
