// Package workflow はパイプラインの各工程を担う Runner 群を構築・管理するのだ。
package workflow

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	imageKit "github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-text-format/pkg/builder"
	"github.com/shouni/go-web-exact/v2/pkg/extract"
	"google.golang.org/genai"

	"github.com/shouni/go-cinema-kit/pkg/asset"
	"github.com/shouni/go-cinema-kit/pkg/config"
	"github.com/shouni/go-cinema-kit/pkg/gate"
	"github.com/shouni/go-cinema-kit/pkg/media"
	"github.com/shouni/go-cinema-kit/pkg/planner"
	"github.com/shouni/go-cinema-kit/pkg/prompts"
	"github.com/shouni/go-cinema-kit/pkg/publisher"
	"github.com/shouni/go-cinema-kit/pkg/runner"
)

const (
	defaultCacheExpiration = 5 * time.Minute
	cacheCleanupInterval   = 15 * time.Minute
	defaultTTL             = 5 * time.Minute
)

// Builder はワークフローの各工程を担う Runner 群を構築・管理するのだ。
type Builder struct {
	cfg         config.Config
	httpClient  httpkit.ClientInterface
	aiClient    gemini.GenerativeModel
	genaiClient *genai.Client
	reader      remoteio.InputReader
	writer      remoteio.OutputWriter
	store       *asset.Store
	images      *media.ImageService
	evaluator   *gate.Gate
}

// NewBuilder は Config と外部クライアント群を基に新しい Builder を作成するのだ。
func NewBuilder(
	cfg config.Config,
	httpClient httpkit.ClientInterface,
	aiClient gemini.GenerativeModel,
	genaiClient *genai.Client,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
) (*Builder, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient は必須です")
	}
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient は必須です")
	}
	if genaiClient == nil {
		return nil, fmt.Errorf("genaiClient は必須です")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader は必須です")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer は必須です")
	}

	imgGen, err := initializeImageGenerator(cfg, aiClient, reader, httpClient)
	if err != nil {
		return nil, err
	}

	return &Builder{
		cfg:         cfg,
		httpClient:  httpClient,
		aiClient:    aiClient,
		genaiClient: genaiClient,
		reader:      reader,
		writer:      writer,
		store:       asset.NewStore(httpClient, writer, reader),
		images:      media.NewImageService(imgGen, cfg.AspectRatio, prompts.CinemaNegativePrompt),
		evaluator:   gate.New(media.NewVisionJudge(genaiClient, cfg.JudgeModel)),
	}, nil
}

// Tuning は一貫性ループの設定値を返すのだ。
func (b *Builder) Tuning() config.Tuning {
	return b.cfg.Tuning
}

// BuildPlanner は脚本生成を担当する工程を作成するのだ。
func (b *Builder) BuildPlanner() (PlanStage, error) {
	extractor, err := extract.NewExtractor(b.httpClient)
	if err != nil {
		return nil, fmt.Errorf("エクストラクタの初期化に失敗しました: %w", err)
	}
	return planner.New(b.aiClient, extractor, b.cfg.GeminiModel), nil
}

// BuildPortraitRunner はポートレート確定を担当する工程を作成するのだ。
func (b *Builder) BuildPortraitRunner(baseDir string) PortraitStage {
	return runner.NewPortraitRunner(b.images, b.evaluator, b.store, b.cfg.Tuning, baseDir, b.cfg.RateInterval)
}

// BuildKeyframeRunner はキーフレーム確定を担当する工程を作成するのだ。
func (b *Builder) BuildKeyframeRunner(baseDir string) KeyframeStage {
	return runner.NewKeyframeRunner(b.images, b.evaluator, b.store, b.cfg.Tuning, baseDir)
}

// BuildSceneVideoRunner はクリップ確定を担当する工程を作成するのだ。
func (b *Builder) BuildSceneVideoRunner(baseDir string) VideoStage {
	videoClient := media.NewVideoClient(b.httpClient, b.cfg.VideoAPIBaseURL, b.cfg.VideoAPIKey, b.cfg.VideoModel)
	return runner.NewSceneVideoRunner(videoClient, b.evaluator, b.store, media.NewFFmpeg(), b.cfg.Tuning, baseDir)
}

// BuildAssemblyRunner は最終結合を担当する工程を作成するのだ。
func (b *Builder) BuildAssemblyRunner(baseDir string) AssemblyStage {
	return runner.NewAssemblyRunner(media.NewFFmpeg(), b.store, baseDir)
}

// BuildPublisher は絵コンテと状態の書き出しを担当する工程を作成するのだ。
func (b *Builder) BuildPublisher() (PublishStage, error) {
	htmlCfg := builder.BuilderConfig{
		EnableHardWraps: true,
	}
	md2htmlBuilder, err := builder.NewBuilder(htmlCfg)
	if err != nil {
		return nil, fmt.Errorf("md2htmlBuilderの初期化に失敗しました: %w", err)
	}
	md2htmlRunner, err := md2htmlBuilder.BuildRunner()
	if err != nil {
		return nil, fmt.Errorf("md2htmlrunnerの初期化に失敗しました: %w", err)
	}
	return publisher.NewFilmPublisher(b.writer, md2htmlRunner), nil
}

// initializeImageGenerator は、画像キャッシュを含む ImageGenerator を初期化します。
func initializeImageGenerator(cfg config.Config, aiClient gemini.GenerativeModel, reader remoteio.InputReader, httpClient httpkit.ClientInterface) (imageKit.ImageGenerator, error) {
	imgCache := cache.New(defaultCacheExpiration, cacheCleanupInterval)
	core, err := imageKit.NewGeminiImageCore(
		aiClient,
		reader,
		httpClient,
		imgCache,
		defaultTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("GeminiImageCore の初期化に失敗しました: %w", err)
	}

	imgGen, err := imageKit.NewGeminiGenerator(
		cfg.ImageModel,
		core,
	)
	if err != nil {
		return nil, fmt.Errorf("GeminiGenerator の初期化に失敗しました: %w", err)
	}
	return imgGen, nil
}
