package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-cinema-kit/internal/config"
	"github.com/shouni/go-cinema-kit/internal/history"
	"github.com/shouni/go-cinema-kit/internal/pipeline"
	"github.com/shouni/go-cinema-kit/internal/web"
	"github.com/shouni/go-cinema-kit/pkg/observer"

	"github.com/spf13/cobra"
)

// generateCmd は、コンセプトから最終動画までの全工程を実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "コンセプトから一貫性チェック付きで短編映像を生成しますなのだ。",
	Long: `コンセプト文を解析して脚本・ポートレート・キーフレーム・動画クリップを順に確定し、
最後に1本の最終動画へ結合するのだ。各アセットは審査スコアが合格ラインを超えるまで再生成されるのだよ。`,
	RunE: generateCommand,
}

func init() {
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 位置引数もコンセプト文として受け付けるのだ
	if opts.Concept == "" && len(args) > 0 {
		opts.Concept = strings.Join(args, " ")
	}
	if opts.Concept == "" && opts.ConceptFile == "" && opts.ConceptURL == "" && opts.PlanFile == "" {
		return fmt.Errorf("ソース（--concept / --concept-file / --concept-url / --plan-file）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("映像生成パイプラインを起動するのだ！",
		"text_model", cfg.GeminiModel,
		"image_model", cfg.ImageModel,
		"video_model", cfg.VideoModel,
		"scenes", opts.SceneCount,
		"output", opts.OutputDir)

	obs, shutdown := startMonitor(ctx, cfg)
	defer shutdown()

	if err := pipeline.Execute(ctx, cfg, obs); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}

// startMonitor は --addr が指定されたときだけ進行モニタを立ち上げるのだ。
func startMonitor(ctx context.Context, cfg *config.Config) (observer.Observer, func()) {
	if cfg.Options.ServeAddr == "" {
		return observer.NullObserver{}, func() {}
	}

	hub := web.NewHub()
	go hub.Run()
	progress := web.NewProgressObserver(hub)

	var runs *history.Store
	if cfg.HistoryDBPath != "" {
		var err error
		runs, err = history.NewStore(cfg.HistoryDBPath, cfg.KitConfig().Tuning.ScoreThreshold)
		if err != nil {
			slog.Warn("履歴ストアを開けなかったのでモニタは現在の実行だけ表示するのだ", "error", err)
		}
	}

	serveCtx, cancel := context.WithCancel(ctx)
	server := web.NewServer(hub, progress, runs, cfg.Options.OutputDir)
	go func() {
		slog.Info("進行モニタを開始するのだ", "addr", cfg.Options.ServeAddr)
		if err := server.ListenAndServe(serveCtx, cfg.Options.ServeAddr); err != nil {
			slog.Warn("進行モニタが停止したのだ", "error", err)
		}
	}()

	return progress, func() {
		cancel()
		if runs != nil {
			runs.Close()
		}
	}
}
