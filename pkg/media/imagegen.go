// Package media は画像・動画・視覚審査の外部サービス呼び出しを担当します。
package media

import (
	"context"
	"fmt"

	imgdom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/gemini-image-kit/pkg/generator"
)

// maxImageRefs は画像モデルが一度に受け取れる参照画像の上限です。
const maxImageRefs = 3

// portraitAspectRatio はポートレート専用の縦長比率です。
// シーン側の比率は脚本の aspect_ratio に従います。
const portraitAspectRatio = "3:4"

// ImageService は gemini-image-kit の上に掛ける薄いアダプタです。
// 新規合成（複数参照）と外科的編集（単一参照）を呼び分けます。
type ImageService struct {
	imgGen         generator.ImageGenerator
	aspectRatio    string
	negativePrompt string
}

// NewImageService は依存関係を注入して初期化します。
func NewImageService(imgGen generator.ImageGenerator, aspectRatio, negativePrompt string) *ImageService {
	return &ImageService{
		imgGen:         imgGen,
		aspectRatio:    aspectRatio,
		negativePrompt: negativePrompt,
	}
}

// GeneratePortrait は参照なしでポートレートを新規生成します。
func (s *ImageService) GeneratePortrait(ctx context.Context, prompt string) (*imgdom.ImageResponse, error) {
	resp, err := s.imgGen.GenerateMangaPanel(ctx, imgdom.ImageGenerationRequest{
		Prompt:         prompt,
		NegativePrompt: s.negativePrompt,
		AspectRatio:    portraitAspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("ポートレートの生成に失敗しました: %w", err)
	}
	return resp, nil
}

// ComposeScene は複数の参照画像を束ねてシーンを新規合成します。
func (s *ImageService) ComposeScene(ctx context.Context, prompt string, referencePaths []string) (*imgdom.ImageResponse, error) {
	if len(referencePaths) > maxImageRefs {
		return nil, fmt.Errorf("参照画像が %d 枚あり上限 %d を超えています", len(referencePaths), maxImageRefs)
	}
	resp, err := s.imgGen.GenerateMangaPage(ctx, imgdom.ImagePageRequest{
		Prompt:        prompt,
		ReferenceURLs: referencePaths,
		AspectRatio:   s.aspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("シーン合成に失敗しました: %w", err)
	}
	return resp, nil
}

// EditImage は既存画像1枚を参照にした外科的編集です。
// 構図を保ったまま指摘箇所だけを直すために使います。
func (s *ImageService) EditImage(ctx context.Context, prompt, sourcePath string) (*imgdom.ImageResponse, error) {
	resp, err := s.imgGen.GenerateMangaPanel(ctx, imgdom.ImageGenerationRequest{
		Prompt:         prompt,
		NegativePrompt: s.negativePrompt,
		ReferenceURL:   sourcePath,
		AspectRatio:    s.aspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("画像の修正に失敗しました: %w", err)
	}
	return resp, nil
}
