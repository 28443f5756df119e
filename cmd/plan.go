package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-cinema-kit/internal/config"
	"github.com/shouni/go-cinema-kit/internal/pipeline"
	"github.com/shouni/go-cinema-kit/pkg/observer"

	"github.com/spf13/cobra"
)

// planCmd は、脚本生成だけを実行して内容を確認するためのコマンドなのだ。
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "脚本（シーン分割とキャラクター定義）だけを生成しますなのだ。",
	Long: `コンセプト文から脚本JSONだけを生成して保存するのだ。
画像や動画のAPIを呼ぶ前に、シーン分割とキャラクターの見た目定義を確認したいときに使うのだよ。`,
	RunE: planCommand,
}

func planCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.Concept == "" && len(args) > 0 {
		opts.Concept = strings.Join(args, " ")
	}
	if opts.Concept == "" && opts.ConceptFile == "" && opts.ConceptURL == "" {
		return fmt.Errorf("ソース（--concept / --concept-file / --concept-url）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("脚本生成モードを起動するのだ！",
		"text_model", cfg.GeminiModel,
		"scenes", opts.SceneCount,
		"output", opts.OutputDir)

	if err := pipeline.ExecutePlanOnly(ctx, cfg, observer.NullObserver{}); err != nil {
		return fmt.Errorf("脚本生成中にエラーが発生したのだ: %w", err)
	}

	slog.Info("脚本（JSON）の生成が完了したのだ！", "output_dir", opts.OutputDir)
	return nil
}
