package domain

import (
	"strings"
	"testing"
)

func validPlan() *StoryPlan {
	return &StoryPlan{
		Title: "星降る夜の約束",
		Style: "watercolor anime, soft pastel palette, cinematic lighting",
		Characters: []Character{
			{Name: "ミカ", Role: "protagonist", VisualDescription: "short silver hair, blue coat, red scarf"},
			{Name: "レン", Role: "friend", VisualDescription: "tall, black hair, round glasses"},
		},
		Scenes: []Scene{
			{SceneID: 1, Title: "出会い", Description: "丘の上で二人が出会う", CharactersPresent: []string{"ミカ", "レン"}, DurationSeconds: 6},
			{SceneID: 2, Title: "約束", Description: "流星の下で約束を交わす", CharactersPresent: []string{"ミカ"}, DurationSeconds: 8},
		},
	}
}

func TestStoryPlan_Validate(t *testing.T) {
	t.Run("正しい脚本は検証を通るのだ", func(t *testing.T) {
		if err := validPlan().Validate(); err != nil {
			t.Fatalf("検証に失敗したのだ: %v", err)
		}
	})

	t.Run("スタイルが空なら弾くのだ", func(t *testing.T) {
		p := validPlan()
		p.Style = "  "
		if err := p.Validate(); err == nil {
			t.Error("空のスタイルが通ってしまったのだ")
		}
	})

	t.Run("visual_descriptionが空のキャラクターは弾くのだ", func(t *testing.T) {
		p := validPlan()
		p.Characters[1].VisualDescription = ""
		if err := p.Validate(); err == nil {
			t.Error("外見説明のないキャラクターが通ってしまったのだ")
		}
	})

	t.Run("キャラクター名の重複は弾くのだ", func(t *testing.T) {
		p := validPlan()
		p.Characters = append(p.Characters, Character{Name: "ミカ", VisualDescription: "duplicate"})
		if err := p.Validate(); err == nil {
			t.Error("重複した名前が通ってしまったのだ")
		}
	})

	t.Run("尺が範囲外のシーンは弾くのだ", func(t *testing.T) {
		p := validPlan()
		p.Scenes[0].DurationSeconds = 2
		if err := p.Validate(); err == nil {
			t.Error("3秒未満のシーンが通ってしまったのだ")
		}
		p = validPlan()
		p.Scenes[1].DurationSeconds = 20
		if err := p.Validate(); err == nil {
			t.Error("15秒超のシーンが通ってしまったのだ")
		}
	})

	t.Run("シーンが未知のキャラクターを参照してもエラーにはしないのだ", func(t *testing.T) {
		p := validPlan()
		p.Scenes[0].CharactersPresent = append(p.Scenes[0].CharactersPresent, "謎の人物")
		if err := p.Validate(); err != nil {
			t.Fatalf("未知の参照でエラーになってしまったのだ: %v", err)
		}
		refs := p.UnknownCharacterRefs()
		if got := refs[1]; len(got) != 1 || got[0] != "謎の人物" {
			t.Errorf("未知参照の検出が正しくないのだ: %+v", refs)
		}
	})
}

func TestStoryPlan_ClampDurations(t *testing.T) {
	t.Run("上限超過は上限へ切り詰め、下回る値はそのままなのだ", func(t *testing.T) {
		p := validPlan()
		p.Scenes[0].DurationSeconds = 12
		p.Scenes[1].DurationSeconds = 5
		clamped := p.ClampDurations(8)
		if len(clamped) != 1 || clamped[0] != 1 {
			t.Errorf("切り詰め対象のシーンIDが違うのだ: %v", clamped)
		}
		if p.Scenes[0].DurationSeconds != 8 {
			t.Errorf("切り詰め後の尺が違うのだ: %d", p.Scenes[0].DurationSeconds)
		}
		if p.Scenes[1].DurationSeconds != 5 {
			t.Error("上限以下の尺まで書き換わってしまったのだ")
		}
	})
}

func TestParseStoryPlan(t *testing.T) {
	t.Run("JSONから脚本を復元して検証もかけるのだ", func(t *testing.T) {
		input := `{
			"title": "海辺の手紙",
			"style": "oil painting, warm golden hour",
			"characters": [{"name": "ユイ", "visual_description": "long brown hair, white dress"}],
			"scenes": [{"scene_id": 1, "title": "浜辺", "description": "ユイが手紙を拾う", "characters_present": ["ユイ"], "duration_seconds": 7}]
		}`
		p, err := ParseStoryPlan([]byte(input))
		if err != nil {
			t.Fatalf("パース失敗なのだ: %v", err)
		}
		if p.Title != "海辺の手紙" || len(p.Scenes) != 1 {
			t.Errorf("内容が正しく復元されていないのだ: %+v", p)
		}
	})

	t.Run("検証を通らないJSONはエラーになるのだ", func(t *testing.T) {
		if _, err := ParseStoryPlan([]byte(`{"title":"x","style":"","scenes":[]}`)); err == nil {
			t.Error("不正な脚本が通ってしまったのだ")
		}
	})
}

func TestConsistencyScore(t *testing.T) {
	t.Run("範囲外のスコアは検証エラーになるのだ", func(t *testing.T) {
		s := &ConsistencyScore{OverallScore: 1.2}
		if err := s.Validate(); err == nil {
			t.Error("1を超えるスコアが通ってしまったのだ")
		}
		s = &ConsistencyScore{OverallScore: 0.8, PerCharacter: map[string]float64{"ミカ": -0.1}}
		if err := s.Validate(); err == nil {
			t.Error("負のキャラクタースコアが通ってしまったのだ")
		}
	})

	t.Run("閾値ちょうどは合格なのだ", func(t *testing.T) {
		s := &ConsistencyScore{OverallScore: 0.80}
		if !s.Passed(0.80) {
			t.Error("閾値ちょうどが不合格になってしまったのだ")
		}
	})

	t.Run("FixPromptがなければIssuesから修正指示を組み立てるのだ", func(t *testing.T) {
		s := &ConsistencyScore{Issues: []string{"hair is brown, should be silver", "missing scarf"}}
		got := s.CorrectionPrompt()
		if !strings.HasPrefix(got, "Fix ONLY these issues") {
			t.Errorf("修正指示の形式が違うのだ: %s", got)
		}
		if !strings.Contains(got, "missing scarf") {
			t.Errorf("Issuesが指示に含まれていないのだ: %s", got)
		}
	})

	t.Run("FixPromptがあればそれをそのまま使うのだ", func(t *testing.T) {
		s := &ConsistencyScore{FixPrompt: "change the scarf to red", Issues: []string{"x"}}
		if got := s.CorrectionPrompt(); got != "change the scarf to red" {
			t.Errorf("FixPromptが優先されていないのだ: %s", got)
		}
	})
}

func TestFilmState_Encode(t *testing.T) {
	t.Run("直列化と復元を往復できるのだ", func(t *testing.T) {
		state := &FilmState{
			RunID: "run-001",
			Plan:  validPlan(),
			Keyframes: []*KeyframeAsset{
				{SceneID: 2, KeyframePath: "keyframes/scene_2_v1.jpg"},
				{SceneID: 1, KeyframePath: "keyframes/scene_1_v1.jpg"},
			},
		}
		data, err := state.Encode()
		if err != nil {
			t.Fatalf("直列化に失敗したのだ: %v", err)
		}
		decoded, err := DecodeFilmState(data)
		if err != nil {
			t.Fatalf("復元に失敗したのだ: %v", err)
		}
		if decoded.Keyframes[0].SceneID != 1 {
			t.Error("キーフレームがシーン順に整列されていないのだ")
		}
	})

	t.Run("脚本のない状態は復元時に弾くのだ", func(t *testing.T) {
		if _, err := DecodeFilmState([]byte(`{"run_id":"x"}`)); err == nil {
			t.Error("脚本なしの状態が通ってしまったのだ")
		}
	})
}
