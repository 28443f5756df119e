package workflow

import (
	"context"

	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/publisher"
)

// PlanStage はコンセプトから脚本を生成する工程なのだ。
type PlanStage interface {
	Plan(ctx context.Context, concept string, sceneCount int) (*domain.StoryPlan, error)
	PlanFromURL(ctx context.Context, url string, sceneCount int) (*domain.StoryPlan, error)
}

// PortraitStage は全キャラクターのポートレートを確定させる工程なのだ。
type PortraitStage interface {
	Run(ctx context.Context, plan *domain.StoryPlan) (domain.CharacterAssets, error)
}

// KeyframeStage はシーンキーフレームを確定させる工程なのだ。
type KeyframeStage interface {
	Run(ctx context.Context, plan *domain.StoryPlan, chars domain.CharacterAssets) ([]*domain.KeyframeAsset, error)
}

// VideoStage はシーンクリップを確定させる工程なのだ。
type VideoStage interface {
	Run(ctx context.Context, plan *domain.StoryPlan, chars domain.CharacterAssets, keyframes []*domain.KeyframeAsset) ([]*domain.VideoAsset, error)
}

// AssemblyStage はクリップを最終動画へ結合する工程なのだ。
type AssemblyStage interface {
	Run(ctx context.Context, videos []*domain.VideoAsset) (string, error)
}

// PublishStage は絵コンテと状態の書き出しを担う工程なのだ。
type PublishStage interface {
	PublishStoryboard(ctx context.Context, state *domain.FilmState, opts publisher.Options) (publisher.PublishResult, error)
	SaveState(ctx context.Context, state *domain.FilmState, outputDir string) (string, error)
}
