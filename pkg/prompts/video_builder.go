package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// BuildVideoPrompt はキーフレームから動画を起こすための動きだけのプロンプトを返します。
//
// 外見の再記述は一切含めません。見た目はキーフレーム側で確定済みであり、
// ここで言い直すと動画モデルが独自解釈で崩してしまうためです。
func BuildVideoPrompt(scene *domain.Scene) string {
	var sb strings.Builder
	sb.WriteString("Animate the provided image. Describe only motion, never appearance.\n")
	if scene.Action != "" {
		sb.WriteString(fmt.Sprintf("- ACTION: %s\n", scene.Action))
	} else {
		sb.WriteString("- ACTION: Subtle natural movement. Breathing, ambient motion, gentle environmental drift.\n")
	}
	if scene.Camera != "" {
		sb.WriteString(fmt.Sprintf("- CAMERA: %s\n", scene.Camera))
	}
	if scene.Mood != "" {
		sb.WriteString(fmt.Sprintf("- PACING: Match the mood: %s\n", scene.Mood))
	}
	sb.WriteString(fmt.Sprintf("- DURATION: about %d seconds.\n", scene.DurationSeconds))
	sb.WriteString("Every person and object keeps the exact appearance from the source image.")
	return sb.String()
}

// BuildVideoCorrectionPrompt は動画クリップの再生成に添える修正指示を返します。
func BuildVideoCorrectionPrompt(scene *domain.Scene, issues []string) string {
	var sb strings.Builder
	sb.WriteString(BuildVideoPrompt(scene))
	if len(issues) > 0 {
		sb.WriteString("\nAvoid these problems from the previous attempt: ")
		sb.WriteString(strings.Join(issues, "; "))
	}
	return sb.String()
}
