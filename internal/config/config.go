package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"

	kitconfig "github.com/shouni/go-cinema-kit/pkg/config"
)

// デフォルト値の定義なのだ
const (
	DefaultModel       = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-3-pro-image-preview"
	DefaultJudgeModel  = "gemini-3-flash-preview"
	DefaultVideoModel  = "veo-3.1-generate-preview"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultRateLimit   = 10 * time.Second
	DefaultSceneCount  = 5
	DefaultOutputDir   = "output"
	DefaultHistoryDB   = "output/cinema_history.db"
	DefaultServeAddr   = ":8080"
)

// Config はアプリケーション全体の環境設定（APIキーや外部サービス設定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey    string
	GeminiModel     string
	ImageModel      string
	JudgeModel      string
	VideoModel      string
	VideoAPIBaseURL string
	VideoAPIKey     string
	HistoryDBPath   string

	Options GenerateOptions
}

// LoadConfig は .env と環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	// .env はあれば読む。無くてもエラーにしない
	_ = godotenv.Load()

	return &Config{
		GeminiAPIKey:    envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:     envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		ImageModel:      envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		JudgeModel:      envutil.GetEnv("JUDGE_GEMINI_MODEL", DefaultJudgeModel),
		VideoModel:      envutil.GetEnv("VIDEO_MODEL", DefaultVideoModel),
		VideoAPIBaseURL: envutil.GetEnv("VIDEO_API_BASE_URL", ""),
		VideoAPIKey:     envutil.GetEnv("VIDEO_API_KEY", ""),
		HistoryDBPath:   envutil.GetEnv("HISTORY_DB_PATH", DefaultHistoryDB),
	}
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// ソース入力関連
	Concept     string // --concept: コンセプト文そのもの
	ConceptFile string // --concept-file: コンセプト文のファイルパス
	ConceptURL  string // --concept-url: コンセプトを抽出するWebページ
	PlanFile    string // --plan-file: 保存済み脚本JSONを使って構想工程を飛ばす
	SceneCount  int    // --scenes
	OutputDir   string // --output-dir

	// 一貫性ループの調整
	ScoreThreshold  float64 // --threshold
	MaxClipDuration int     // --max-clip-duration

	// 実行制御
	RateInterval time.Duration // --rate-interval
	HTTPTimeout  time.Duration // --http-timeout
	SkipVideo    bool          // --skip-video: キーフレームまでで止める
	ServeAddr    string        // --addr (serve コマンド用)
}

// KitConfig は実行時オプションを反映した pkg 側の設定を組み立てるのだ。
func (c *Config) KitConfig() kitconfig.Config {
	kit := kitconfig.DefaultConfig()
	kit.GeminiAPIKey = c.GeminiAPIKey
	kit.GeminiModel = c.GeminiModel
	kit.ImageModel = c.ImageModel
	kit.JudgeModel = c.JudgeModel
	kit.VideoModel = c.VideoModel
	kit.VideoAPIBaseURL = c.VideoAPIBaseURL
	kit.VideoAPIKey = c.VideoAPIKey
	if c.Options.RateInterval > 0 {
		kit.RateInterval = c.Options.RateInterval
	}
	if c.Options.ScoreThreshold > 0 {
		kit.Tuning.ScoreThreshold = c.Options.ScoreThreshold
	}
	if c.Options.MaxClipDuration > 0 {
		kit.Tuning.MaxClipDuration = c.Options.MaxClipDuration
	}
	return kit
}
