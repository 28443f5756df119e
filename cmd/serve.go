package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-cinema-kit/internal/config"
	"github.com/shouni/go-cinema-kit/internal/history"
	"github.com/shouni/go-cinema-kit/internal/web"

	"github.com/spf13/cobra"
)

// serveCmd は、過去の実行履歴と成果物を閲覧するモニタサーバーなのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "実行履歴と成果物を閲覧するモニタサーバーを起動しますなのだ。",
	RunE:  serveCommand,
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	addr := opts.ServeAddr
	if addr == "" {
		addr = config.DefaultServeAddr
	}

	runs, err := history.NewStore(cfg.HistoryDBPath, cfg.KitConfig().Tuning.ScoreThreshold)
	if err != nil {
		return fmt.Errorf("履歴ストアを開けなかったのだ: %w", err)
	}
	defer runs.Close()

	hub := web.NewHub()
	go hub.Run()

	server := web.NewServer(hub, web.NewProgressObserver(hub), runs, opts.OutputDir)
	slog.Info("モニタサーバーを起動するのだ！", "addr", addr, "history_db", cfg.HistoryDBPath)
	return server.ListenAndServe(ctx, addr)
}
