// Package publisher は絵コンテと最終成果物の書き出しを担います。
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-text-format/pkg/md2htmlrunner"

	"github.com/shouni/go-cinema-kit/pkg/asset"
	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string
}

// PublishResult はパブリッシュ処理の結果として生成されたファイルの情報を保持します。
type PublishResult struct {
	MarkdownPath string // 生成された storyboard.md のパス
	HTMLPath     string // 生成された HTML のパス
	StatePath    string // 書き出された状態ファイルのパス
}

// FilmPublisher は成果物の永続化とフォーマット変換を担います。
type FilmPublisher struct {
	writer     remoteio.OutputWriter
	htmlRunner md2htmlrunner.Runner
}

// NewFilmPublisher は依存関係を注入して初期化します。
func NewFilmPublisher(writer remoteio.OutputWriter, htmlRunner md2htmlrunner.Runner) *FilmPublisher {
	return &FilmPublisher{
		writer:     writer,
		htmlRunner: htmlRunner,
	}
}

// SaveState は現在の状態を段階境界のスナップショットとして書き出します。
func (p *FilmPublisher) SaveState(ctx context.Context, state *domain.FilmState, outputDir string) (string, error) {
	statePath, err := asset.ResolveOutputPath(outputDir, asset.DefaultStateName)
	if err != nil {
		return "", err
	}
	data, err := state.Encode()
	if err != nil {
		return "", err
	}
	if err := p.writer.Write(ctx, statePath, strings.NewReader(string(data)), "application/json; charset=utf-8"); err != nil {
		return "", fmt.Errorf("状態ファイルの書き込みに失敗しました: %w", err)
	}
	return statePath, nil
}

// PublishStoryboard は絵コンテのMarkdownを構築し、HTML変換まで一括して実行するのだ！
func (p *FilmPublisher) PublishStoryboard(ctx context.Context, state *domain.FilmState, opts Options) (PublishResult, error) {
	result := PublishResult{}

	markdown, err := asset.ResolveOutputPath(opts.OutputDir, asset.DefaultStoryboardName)
	if err != nil {
		return result, err
	}
	result.MarkdownPath = markdown

	content := p.buildMarkdown(state)
	if err := p.writer.Write(ctx, markdown, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return result, fmt.Errorf("markdownファイルの書き込みに失敗しました: %w", err)
	}

	if p.htmlRunner != nil {
		slog.Info("Converting storyboard to HTML", "title", state.Plan.Title)
		htmlBuffer, err := p.htmlRunner.Run(ctx, state.Plan.Title, []byte(content))
		if err != nil {
			return result, fmt.Errorf("HTMLの変換に失敗しました: %w", err)
		}

		htmlPath := strings.TrimSuffix(markdown, filepath.Ext(markdown)) + ".html"
		if err := p.writer.Write(ctx, htmlPath, htmlBuffer, "text/html; charset=utf-8"); err != nil {
			return result, fmt.Errorf("HTMLファイルの書き込みに失敗しました: %w", err)
		}
		result.HTMLPath = htmlPath
	}

	statePath, err := p.SaveState(ctx, state, opts.OutputDir)
	if err != nil {
		return result, err
	}
	result.StatePath = statePath
	return result, nil
}

// buildMarkdown は脚本と確定アセットから絵コンテを組み立てます。
// 画像は出力ディレクトリからの相対パスで参照します。
func (p *FilmPublisher) buildMarkdown(state *domain.FilmState) string {
	var sb strings.Builder
	plan := state.Plan

	sb.WriteString(fmt.Sprintf("# %s\n\n", plan.Title))
	sb.WriteString(fmt.Sprintf("**Style:** %s\n\n", plan.Style))

	if len(state.Characters) > 0 {
		sb.WriteString("## Characters\n\n")
		for _, char := range plan.Characters {
			a, ok := state.Characters[char.Name]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("### %s\n\n", char.Name))
			sb.WriteString(fmt.Sprintf("%s\n\n", char.VisualDescription))
			sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", char.Name, relativeAssetPath(a.PortraitPath)))
			if a.Score != nil {
				sb.WriteString(fmt.Sprintf("- consistency: %.2f (%d attempts)\n\n", a.Score.OverallScore, a.GenerationAttempts))
			}
		}
	}

	sb.WriteString("## Scenes\n\n")
	for i := range plan.Scenes {
		scene := &plan.Scenes[i]
		sb.WriteString(fmt.Sprintf("### Scene %d: %s\n\n", scene.SceneID, scene.Title))
		sb.WriteString(fmt.Sprintf("%s\n\n", scene.Description))
		sb.WriteString(fmt.Sprintf("- duration: %ds\n", scene.DurationSeconds))
		if len(scene.CharactersPresent) > 0 {
			sb.WriteString(fmt.Sprintf("- cast: %s\n", strings.Join(scene.CharactersPresent, ", ")))
		}
		if scene.Camera != "" {
			sb.WriteString(fmt.Sprintf("- camera: %s\n", scene.Camera))
		}
		sb.WriteString("\n")

		if kf := state.KeyframeByScene(scene.SceneID); kf != nil {
			sb.WriteString(fmt.Sprintf("![scene %d keyframe](%s)\n\n", scene.SceneID, relativeAssetPath(kf.KeyframePath)))
			if kf.Score != nil {
				sb.WriteString(fmt.Sprintf("- consistency: %.2f (%d generations, %d edits)\n\n", kf.Score.OverallScore, kf.GenerationAttempts, kf.EditPasses))
			}
		}
		if v := state.VideoByScene(scene.SceneID); v != nil {
			sb.WriteString(fmt.Sprintf("- clip: [%s](%s)\n\n", filepath.Base(v.VideoPath), relativeAssetPath(v.VideoPath)))
		}
	}

	if state.FinalVideoPath != "" {
		sb.WriteString("## Final Film\n\n")
		sb.WriteString(fmt.Sprintf("[%s](%s)\n", filepath.Base(state.FinalVideoPath), relativeAssetPath(state.FinalVideoPath)))
	}
	return sb.String()
}

// relativeAssetPath は絵コンテから見た相対参照を作ります。
// 成果物は out/<種別ディレクトリ>/<ファイル名> の2階層に固定なのだ。
func relativeAssetPath(assetPath string) string {
	dir := filepath.Base(filepath.Dir(assetPath))
	return path.Join(dir, filepath.Base(assetPath))
}
