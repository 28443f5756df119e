// Package prompts は各生成段階に渡すプロンプトの組み立てを担当します。
//
// 画像系のプロンプトには必ず脚本の style を一語一句そのまま埋め込みます。
// 言い換えや要約を挟むと全アセットの画風が揃わなくなるためです。
package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// BuildPortraitPrompt はキャラクターポートレートの生成プロンプトを組み立てます。
func BuildPortraitPrompt(char *domain.Character, style string) string {
	var sb strings.Builder
	sb.WriteString(PortraitStructureHeader)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Full body character portrait of %s.", char.VisualDescription))
	if len(char.PersonalityCues) > 0 {
		sb.WriteString(fmt.Sprintf(" Expression and posture suggest: %s.", strings.Join(char.PersonalityCues, ", ")))
	}
	sb.WriteString("\n\n")
	sb.WriteString(styleLockSection(style))
	return sb.String()
}

// styleLockSection は脚本の画風指定を丸ごと埋め込むセクションです。
func styleLockSection(style string) string {
	var sb strings.Builder
	sb.WriteString("### GLOBAL VISUAL STYLE (VERBATIM, DO NOT REINTERPRET) ###\n")
	sb.WriteString(style)
	sb.WriteString("\n")
	sb.WriteString(CinematicTags)
	return sb.String()
}
