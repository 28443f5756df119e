package planner

import (
	"strings"
	"testing"
)

const validPlanJSON = `{
	"title": "星降る夜の約束",
	"style": "watercolor anime, soft pastel palette",
	"characters": [{"name": "ミカ", "visual_description": "short silver hair, blue coat"}],
	"scenes": [{"scene_id": 1, "title": "出会い", "description": "丘の上の出会い", "characters_present": ["ミカ"], "duration_seconds": 6}]
}`

func TestParsePlanResponse(t *testing.T) {
	t.Run("フェンス付きJSONから脚本を取り出せるのだ", func(t *testing.T) {
		raw := "Here is the plan:\n```json\n" + validPlanJSON + "\n```\nEnjoy!"
		plan, err := parsePlanResponse(raw)
		if err != nil {
			t.Fatalf("パース失敗なのだ: %v", err)
		}
		if plan.Title != "星降る夜の約束" || len(plan.Scenes) != 1 {
			t.Errorf("脚本の内容が違うのだ: %+v", plan)
		}
	})

	t.Run("フェンスなしの裸のJSONでも取り出せるのだ", func(t *testing.T) {
		plan, err := parsePlanResponse("Sure! " + validPlanJSON)
		if err != nil {
			t.Fatalf("パース失敗なのだ: %v", err)
		}
		if plan.Style != "watercolor anime, soft pastel palette" {
			t.Errorf("スタイルが読めていないのだ: %+v", plan)
		}
	})

	t.Run("スキーマ違反の脚本はエラーになるのだ", func(t *testing.T) {
		broken := strings.Replace(validPlanJSON, `"duration_seconds": 6`, `"duration_seconds": 99`, 1)
		if _, err := parsePlanResponse(broken); err == nil {
			t.Error("尺が範囲外の脚本が通ってしまったのだ")
		}
	})

	t.Run("JSONが見つからない応答はエラーになるのだ", func(t *testing.T) {
		if _, err := parsePlanResponse("I cannot create a plan."); err == nil {
			t.Error("JSONなしの応答が通ってしまったのだ")
		}
	})
}
