package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-cinema-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は addAppFlags で各フラグに紐付く実行時オプションなのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- ソース入力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.Concept, "concept", "c", "", "映像化したいコンセプト文そのものなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.ConceptFile, "concept-file", "f", "", "コンセプト文を書いたファイルのパスなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.ConceptURL, "concept-url", "u", "", "コンセプトを抽出するWebページのURLなのだ。")

	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "成果物の保存先ディレクトリ（ローカル or gs://...）なのだ。")

	// --- 生成挙動の調整 ---
	rootCmd.PersistentFlags().IntVarP(&opts.SceneCount, "scenes", "s", config.DefaultSceneCount, "生成するシーン数なのだ。")
	rootCmd.PersistentFlags().Float64Var(&opts.ScoreThreshold, "threshold", 0, "一貫性スコアの合格ラインなのだ（0で既定値）。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxClipDuration, "max-clip-duration", 0, "1クリップの最大秒数なのだ（0で既定値）。")
	rootCmd.PersistentFlags().DurationVar(&opts.RateInterval, "rate-interval", config.DefaultRateLimit, "画像生成APIの呼び出し間隔なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "Webリクエストのタイムアウトなのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.SkipVideo, "skip-video", false, "キーフレーム確定までで止めるのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ServeAddr, "addr", "", "進行モニタのバインドアドレスなのだ（空で無効）。")

	// --- generate コマンド固有 ---
	generateCmd.Flags().StringVar(&opts.PlanFile, "plan-file", "", "保存済みの脚本JSONを使って構想工程を飛ばすのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// serve コマンドは履歴閲覧だけなのでAPIキー不要なのだ
	if cmd.Name() == "serve" {
		return nil
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"ap-cinema-go",
		addAppFlags,
		preRunAppE,
		generateCmd,
		planCmd,
		serveCmd,
	)
}
