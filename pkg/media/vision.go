package media

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/shouni/go-cinema-kit/pkg/gate"
)

// judgeTemperature は審査の再現性を優先して低めに固定します。
const judgeTemperature = float32(0.1)

// VisionJudge は genai のマルチモーダル呼び出しで審査を行う実装です。
type VisionJudge struct {
	client *genai.Client
	model  string
}

// NewVisionJudge は依存関係を注入して初期化します。
func NewVisionJudge(client *genai.Client, model string) *VisionJudge {
	return &VisionJudge{client: client, model: model}
}

// Judge は指示文と画像群を渡し、応答テキストをそのまま返します。
// 応答の解釈は呼び出し側（gate）の仕事です。
func (v *VisionJudge) Judge(ctx context.Context, instruction string, images []gate.Image) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(instruction)}
	for _, img := range images {
		mime := img.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, mime))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(judgeTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("審査モデルの呼び出しに失敗しました: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("審査モデルの応答が空です")
	}
	return text, nil
}
