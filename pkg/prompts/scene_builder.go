package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/refs"
)

// BuildScenePrompt はシーンキーフレームの合成プロンプトを組み立てます。
//
// 参照画像は割り当て順に 1 始まりの番号で束縛します。ポートレートは
// 「reference image N の人物」として名指しし、継続性キーフレームは
// 前シーンとの連続性維持の指示として使います。
func BuildScenePrompt(scene *domain.Scene, style string, allocated []refs.Ref) string {
	var sb strings.Builder
	sb.WriteString(SceneStructureHeader)
	sb.WriteString("\n\n")
	sb.WriteString(buildCastSection(scene, allocated))
	sb.WriteString(fmt.Sprintf("### SCENE %d: %s ###\n", scene.SceneID, scene.Title))
	sb.WriteString(scene.Description)
	sb.WriteString("\n")
	if scene.Setting != "" {
		sb.WriteString(fmt.Sprintf("- SETTING: %s\n", scene.Setting))
	}
	if scene.Camera != "" {
		sb.WriteString(fmt.Sprintf("- CAMERA: %s\n", scene.Camera))
	}
	if scene.Mood != "" {
		sb.WriteString(fmt.Sprintf("- MOOD: %s\n", scene.Mood))
	}
	sb.WriteString("\n")
	sb.WriteString(styleLockSection(style))
	return sb.String()
}

// buildCastSection は参照画像の位置束縛セクションを生成します。
// 登場人数で文面を切り替えます。0人（風景）、1人、複数人で
// モデルへの指示の強さを変えるのだ。
func buildCastSection(scene *domain.Scene, allocated []refs.Ref) string {
	portraits := refs.Portraits(allocated)
	var continuityIndex int
	for i, r := range allocated {
		if r.Kind == refs.KindContinuity {
			continuityIndex = i + 1
		}
	}

	var sb strings.Builder
	switch len(portraits) {
	case 0:
		sb.WriteString("### CAST ###\n")
		sb.WriteString("- No characters in this scene. Environment only.\n")
	case 1:
		sb.WriteString("### CAST (STRICT IDENTITY) ###\n")
		r := allocated[0]
		sb.WriteString(fmt.Sprintf("- %s from reference image 1. Reproduce this exact person: same face, same hair, same outfit.\n", r.Name))
	default:
		sb.WriteString("### CAST (STRICT IDENTITY, DO NOT MIX) ###\n")
		for i, r := range portraits {
			sb.WriteString(fmt.Sprintf("- %s from reference image %d. Keep every visual feature of reference image %d on this person only.\n", r.Name, i+1, i+1))
		}
	}
	if continuityIndex > 0 {
		sb.WriteString(fmt.Sprintf("- CONTINUITY: reference image %d is the previous scene. Match its lighting, color grading and environment where the story allows.\n", continuityIndex))
	}
	sb.WriteString("\n")
	return sb.String()
}

// BuildEditPrompt は既存キーフレームへの外科的修正プロンプトを返します。
// 修正指示以外の領域には触れさせないよう明示するのだ。
func BuildEditPrompt(fixPrompt string) string {
	var sb strings.Builder
	sb.WriteString("Edit the provided image. ")
	sb.WriteString(fixPrompt)
	sb.WriteString("\nChange nothing else: keep the composition, background, lighting and all other characters exactly as they are.")
	return sb.String()
}
