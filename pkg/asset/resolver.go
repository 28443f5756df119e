// Package asset は成果物の配置規約とリモート取得・保存を担当します。
package asset

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shouni/go-utils/urlpath"
)

const (
	// CharacterSheetDir は確定ポートレートを格納するディレクトリ名です。
	CharacterSheetDir = "character_sheets"
	// KeyframeDir はシーンキーフレームを格納するディレクトリ名です。
	KeyframeDir = "keyframes"
	// VideoDir はシーンクリップを格納するディレクトリ名です。
	VideoDir = "videos"
	// FrameDir はクリップから抜いた代表フレームを格納するディレクトリ名です。
	FrameDir = "frames"

	// DefaultStateName は段階境界ごとに書き出す状態ファイル名です。
	DefaultStateName = "film_state.json"
	// DefaultStoryboardName は絵コンテのMarkdownファイル名です。
	DefaultStoryboardName = "storyboard.md"
	// DefaultStoryboardHTMLName は絵コンテのHTMLファイル名です。
	DefaultStoryboardHTMLName = "storyboard.html"
	// DefaultFinalVideoName は結合済みの最終動画ファイル名です。
	DefaultFinalVideoName = "film.mp4"
)

// unsafePathChars はファイル名に使えない文字の集合です。
var unsafePathChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolveOutputPath(baseDir, fileName)
}

// PortraitPath はポートレートの出力先です。試行ごとに版番号が上がります。
// 例: out/character_sheets/ミカ_v2.jpg
func PortraitPath(baseDir, name string, version int) (string, error) {
	file := fmt.Sprintf("%s_v%d.jpg", sanitizeName(name), version)
	return urlpath.ResolveOutputPath(baseDir+"/"+CharacterSheetDir, file)
}

// KeyframePath はシーンキーフレームの出力先です。
// 例: out/keyframes/scene_3_v1.jpg
func KeyframePath(baseDir string, sceneID, version int) (string, error) {
	file := fmt.Sprintf("scene_%d_v%d.jpg", sceneID, version)
	return urlpath.ResolveOutputPath(baseDir+"/"+KeyframeDir, file)
}

// SceneVideoPath はシーンクリップの出力先です。試行ごとに版番号が上がります。
// 最良候補の実体が後の試行で上書きされないようにするためです。
func SceneVideoPath(baseDir string, sceneID, version int) (string, error) {
	file := fmt.Sprintf("scene_%d_v%d.mp4", sceneID, version)
	return urlpath.ResolveOutputPath(baseDir+"/"+VideoDir, file)
}

// FramePath はクリップの代表フレームの出力先です。position は "first" か "last" です。
func FramePath(baseDir string, sceneID, version int, position string) (string, error) {
	file := fmt.Sprintf("scene_%d_v%d_%s.jpg", sceneID, version, position)
	return urlpath.ResolveOutputPath(baseDir+"/"+FrameDir, file)
}

// sanitizeName はキャラクター名をファイル名に使える形へ丸めます。
func sanitizeName(name string) string {
	cleaned := unsafePathChars.ReplaceAllString(strings.TrimSpace(name), "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return "character"
	}
	return cleaned
}
