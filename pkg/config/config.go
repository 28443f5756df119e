package config

import (
	"time"
)

// デフォルト値の定義
const (
	DefaultGeminiModel = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-3-pro-image-preview"
	DefaultJudgeModel  = "gemini-3-flash-preview"
	DefaultVideoModel  = "veo-3.1-generate-preview"

	DefaultRateInterval = 10 * time.Second
	DefaultAspectRatio  = "16:9"

	// DefaultScoreThreshold はこの値以上の審査スコアで候補を採用します。
	DefaultScoreThreshold = 0.80
	// DefaultRegenerateFloor は修正できないクリップを作り直すかどうかの救済ラインです。
	DefaultRegenerateFloor = 0.50

	// DefaultMaxPortraitAttempts / DefaultMaxKeyframeAttempts / DefaultMaxVideoAttempts
	// は各段階の試行回数上限です（初回生成を含む）。
	// 動画は初回生成1回+修正2回までなので上限は3です。
	DefaultMaxPortraitAttempts = 3
	DefaultMaxKeyframeAttempts = 3
	DefaultMaxVideoAttempts    = 3

	// DefaultMaxClipDuration は動画生成に渡す尺の上限（秒）です。
	DefaultMaxClipDuration = 15
	// DefaultCorrectionMaxDuration はクリップ修正を許す尺の上限（秒）です。
	// これより長いクリップは再生成のコストが高すぎるので修正を諦めます。
	DefaultCorrectionMaxDuration = 8
)

// Tuning は一貫性ループの挙動を決めるパラメータ群です。
type Tuning struct {
	ScoreThreshold        float64
	RegenerateFloor       float64
	MaxPortraitAttempts   int
	MaxKeyframeAttempts   int
	MaxVideoAttempts      int
	MaxClipDuration       int
	CorrectionMaxDuration int
}

// DefaultTuning は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultTuning() Tuning {
	return Tuning{
		ScoreThreshold:        DefaultScoreThreshold,
		RegenerateFloor:       DefaultRegenerateFloor,
		MaxPortraitAttempts:   DefaultMaxPortraitAttempts,
		MaxKeyframeAttempts:   DefaultMaxKeyframeAttempts,
		MaxVideoAttempts:      DefaultMaxVideoAttempts,
		MaxClipDuration:       DefaultMaxClipDuration,
		CorrectionMaxDuration: DefaultCorrectionMaxDuration,
	}
}

// Config は Go Cinema Kit の各 Runner を動作させるための基本設定です。
type Config struct {
	// --- AI Model Settings (Common) ---
	GeminiModel string
	ImageModel  string
	JudgeModel  string
	VideoModel  string

	// --- Google AI (Gemini API) Settings ---
	GeminiAPIKey string

	// --- Video Service Settings ---
	VideoAPIBaseURL string
	VideoAPIKey     string

	// --- Generation Settings ---
	AspectRatio  string
	RateInterval time.Duration
	Tuning       Tuning

	// --- Timeout & Retries ---
	RequestTimeout time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		GeminiModel:  DefaultGeminiModel,
		ImageModel:   DefaultImageModel,
		JudgeModel:   DefaultJudgeModel,
		VideoModel:   DefaultVideoModel,
		AspectRatio:  DefaultAspectRatio,
		RateInterval: DefaultRateInterval,
		Tuning:       DefaultTuning(),
	}
}
