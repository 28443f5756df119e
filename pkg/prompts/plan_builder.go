package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// planSchema は脚本応答のJSONスキーマ指示です。
const planSchema = `### RESPONSE FORMAT ###
Respond with ONLY a JSON object, no prose:
{
  "title": "<film title>",
  "style": "<one definitive visual style line: medium, palette, lighting>",
  "aspect_ratio": "16:9",
  "color_palette": "<optional dominant colors>",
  "characters": [
    {"name": "<name>", "role": "<role>", "visual_description": "<exhaustive appearance: hair, eyes, build, outfit, distinguishing marks>", "personality_cues": ["<cue>", ...]}
  ],
  "scenes": [
    {"scene_id": 1, "title": "<short title>", "description": "<what happens, visually concrete>", "characters_present": ["<name>", ...], "setting": "<place, time of day>", "camera": "<shot type>", "mood": "<mood>", "action": "<the one motion for video>", "duration_seconds": <int %d-%d>, "transition": "<cut|fade|dissolve>"}
  ]
}`

// BuildPlanPrompt はコンセプト文から脚本を起こすための指示文を組み立てます。
//
// style は後段のすべての画像生成に逐語で埋め込まれるため、ここで
// 「決定的な1行」として書かせるのだ。
func BuildPlanPrompt(concept string, sceneCount int) string {
	var sb strings.Builder
	sb.WriteString("You are a film director planning a short multi-scene video.\n")
	sb.WriteString(fmt.Sprintf("Break the following concept into exactly %d scenes.\n", sceneCount))
	sb.WriteString("Rules:\n")
	sb.WriteString("- The style field is final and will never be rephrased. Make it one definitive line.\n")
	sb.WriteString("- Every character who appears in any scene must be in the characters list, with an exhaustive visual_description.\n")
	sb.WriteString("- characters_present must use exactly the names from the characters list.\n")
	sb.WriteString(fmt.Sprintf("- duration_seconds must be between %d and %d.\n\n", domain.MinSceneDuration, domain.MaxSceneDuration))
	sb.WriteString("### CONCEPT ###\n")
	sb.WriteString(concept)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf(planSchema, domain.MinSceneDuration, domain.MaxSceneDuration))
	return sb.String()
}
