// Package runner は各段階の実行器を提供します。
//
// どの段階も「候補を作り、審査し、だめなら直す」という同じ反復構造なので、
// 実行器は素材の用意とループ設定に専念し、反復そのものは loop に任せます。
package runner

import (
	"context"

	imgdom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/gate"
	"github.com/shouni/go-cinema-kit/pkg/media"
)

// ImageComposer は画像の新規生成・合成・修正を行うサービスです。
type ImageComposer interface {
	GeneratePortrait(ctx context.Context, prompt string) (*imgdom.ImageResponse, error)
	ComposeScene(ctx context.Context, prompt string, referencePaths []string) (*imgdom.ImageResponse, error)
	EditImage(ctx context.Context, prompt, sourcePath string) (*imgdom.ImageResponse, error)
}

// Evaluator は候補画像群を審査して検証済みスコアを返します。
type Evaluator interface {
	Evaluate(ctx context.Context, instruction string, images []gate.Image) (*domain.ConsistencyScore, error)
}

// VideoTasker は image-to-video の非同期タスクを実行します。
// Edit は既存クリップを元にした修正で、出力は元の尺と比率を引き継ぎます。
type VideoTasker interface {
	Generate(ctx context.Context, req media.VideoTaskRequest) (*media.VideoTaskResult, error)
	Edit(ctx context.Context, prompt, sourceVideoURL string) (*media.VideoTaskResult, error)
}

// AssetStore はアセットの保存・読み戻し・リモート取得を行います。
type AssetStore interface {
	SaveBytes(ctx context.Context, path string, data []byte, mimeType string) error
	ReadBytes(ctx context.Context, path string) ([]byte, error)
	FetchAndStore(ctx context.Context, url, destPath, mimeType string) (string, error)
}

// FrameExtractor はクリップから代表フレームを取り出します。
type FrameExtractor interface {
	ExtractFirstFrame(ctx context.Context, videoPath, outPath string) error
	ExtractLastFrame(ctx context.Context, videoPath, outPath string) error
}

// ClipAssembler はクリップの正規化と結合を行います。
type ClipAssembler interface {
	NormalizeClip(ctx context.Context, inPath, outPath string) error
	ConcatClips(ctx context.Context, clipPaths []string, outPath string) error
}
