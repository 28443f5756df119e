package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/refs"
)

// judgeResponseFormat は審査応答のJSONスキーマ指示です。
// スコアの既定値ゼロ埋めを許さないため、全フィールドを必須にしています。
const judgeResponseFormat = `### RESPONSE FORMAT ###
Respond with ONLY a JSON object, no prose:
{
  "overall_score": <float 0.0-1.0>,
  "per_character": {"<name>": <float 0.0-1.0>, ...},
  "issues": ["<specific visual discrepancy>", ...],
  "fix_prompt": "<one surgical edit instruction fixing only the issues, empty string if none>"
}
Scores must reflect the actual match. Never output a score you did not derive from the images.`

// BuildPortraitJudgePrompt はポートレート審査の指示文を組み立てます。
// 候補画像1枚を文字記述と突き合わせます。
func BuildPortraitJudgePrompt(char *domain.Character) string {
	var sb strings.Builder
	sb.WriteString("You are a strict character design supervisor.\n")
	sb.WriteString(fmt.Sprintf("The image is a candidate portrait of %q. Compare it against this canonical description:\n", char.Name))
	sb.WriteString(char.VisualDescription)
	sb.WriteString("\n\nScore how faithfully the image matches the description. List every visible discrepancy.\n\n")
	sb.WriteString(judgeResponseFormat)
	return sb.String()
}

// BuildSceneJudgePrompt はキーフレーム審査の指示文を組み立てます。
// 画像の並び順は「1枚目が候補、2枚目以降がポートレート参照」で固定です。
// 審査と生成で参照の渡し方を揃えないと、名前とスコアの対応が狂うのだ。
func BuildSceneJudgePrompt(scene *domain.Scene, portraits []refs.Ref) string {
	var sb strings.Builder
	sb.WriteString("You are a strict film continuity supervisor.\n")
	sb.WriteString("Image 1 is the candidate scene frame; images 2 and onward are character reference portraits.\n")
	for i, r := range portraits {
		sb.WriteString(fmt.Sprintf("- Image %d is the reference for %s.\n", i+2, r.Name))
	}
	sb.WriteString(fmt.Sprintf("\nThe frame should depict: %s\n", scene.Description))
	sb.WriteString("For each referenced character, score how closely the person in the candidate matches their reference portrait: face, hair, outfit, build. Also check the overall scene against the description.\n\n")
	sb.WriteString(judgeResponseFormat)
	return sb.String()
}

// BuildVideoJudgePrompt は動画クリップ審査の指示文を組み立てます。
// クリップそのものではなく代表フレームを渡して審査する前提です。
func BuildVideoJudgePrompt(scene *domain.Scene, portraits []refs.Ref) string {
	var sb strings.Builder
	sb.WriteString("You are a strict film continuity supervisor.\n")
	sb.WriteString("Images 1 and 2 are the first and last frames of a generated video clip; images 3 and onward are character reference portraits.\n")
	for i, r := range portraits {
		sb.WriteString(fmt.Sprintf("- Image %d is the reference for %s.\n", i+3, r.Name))
	}
	sb.WriteString(fmt.Sprintf("\nThe clip should depict: %s\n", scene.Description))
	sb.WriteString("Check that every character keeps their reference appearance across both frames, and that nothing morphs, melts or swaps between them.\n\n")
	sb.WriteString(judgeResponseFormat)
	return sb.String()
}
