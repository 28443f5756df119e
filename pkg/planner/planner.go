// Package planner はコンセプト文から構造化された脚本を生成します。
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-web-exact/v2/pkg/extract"

	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/prompts"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// ErrPlanSchema は再生成を使い切ってもスキーマに合う脚本が得られなかったことを示します。
var ErrPlanSchema = errors.New("脚本がスキーマを満たしませんでした")

// maxSchemaRetries はスキーマ違反の脚本が返ってきたときの再生成回数です。
// 脚本なしでは何も始められないので、使い切ったら致命的エラーになります。
const maxSchemaRetries = 2

const (
	defaultCacheExpiration = 5 * time.Minute
	cacheCleanupInterval   = 15 * time.Minute
)

// Planner は脚本生成の実行器です。
type Planner struct {
	aiClient  gemini.GenerativeModel
	extractor *extract.Extractor
	model     string
	planCache *cache.Cache
}

// New は依存関係を注入して初期化します。
func New(aiClient gemini.GenerativeModel, extractor *extract.Extractor, model string) *Planner {
	return &Planner{
		aiClient:  aiClient,
		extractor: extractor,
		model:     model,
		planCache: cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
}

// PlanFromURL はWebページの本文をコンセプトとして脚本を生成します。
func (p *Planner) PlanFromURL(ctx context.Context, url string, sceneCount int) (*domain.StoryPlan, error) {
	slog.Info("Planner: Extracting concept text", "url", url)
	text, _, err := p.extractor.FetchAndExtractText(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("URLからの本文抽出に失敗しました: %w", err)
	}
	return p.Plan(ctx, text, sceneCount)
}

// Plan はコンセプト文から脚本を生成し、検証までかけて返します。
//
// スキーマに合わない応答は違反内容をフィードバックしながら作り直させます。
// 同一コンセプトの再実行に備えて結果は短時間キャッシュするのだ。
func (p *Planner) Plan(ctx context.Context, concept string, sceneCount int) (*domain.StoryPlan, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return nil, fmt.Errorf("コンセプトが空です")
	}

	cacheKey := fmt.Sprintf("%d:%s", sceneCount, concept)
	if cached, found := p.planCache.Get(cacheKey); found {
		slog.Info("Planner: Using cached plan")
		return cached.(*domain.StoryPlan), nil
	}

	// スキーマ違反の再試行は同一入力で行います。指示文を途中で変えると
	// どの入力が失敗したのか切り分けられなくなるためです。
	instruction := prompts.BuildPlanPrompt(concept, sceneCount)
	var lastErr error
	for try := 0; try <= maxSchemaRetries; try++ {
		slog.Info("Planner: Calling Gemini API", "model", p.model, "try", try+1)
		resp, err := p.aiClient.GenerateContent(ctx, instruction, p.model)
		if err != nil {
			return nil, fmt.Errorf("脚本生成の呼び出しに失敗しました: %w", err)
		}

		plan, err := parsePlanResponse(resp.Text)
		if err == nil {
			p.planCache.Set(cacheKey, plan, cache.DefaultExpiration)
			return plan, nil
		}
		lastErr = err
		slog.Warn("Planner: 脚本がスキーマに合わないので作り直すのだ", "error", err)
	}
	return nil, fmt.Errorf("有効な脚本を生成できませんでした (%w): %v", ErrPlanSchema, lastErr)
}

func parsePlanResponse(raw string) (*domain.StoryPlan, error) {
	raw = strings.TrimSpace(raw)
	var rawJSON string

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		firstBracket := strings.Index(raw, "{")
		lastBracket := strings.LastIndex(raw, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			rawJSON = raw[firstBracket : lastBracket+1]
		} else {
			rawJSON = raw
		}
	}

	plan, err := domain.ParseStoryPlan([]byte(rawJSON))
	if err != nil {
		return nil, fmt.Errorf("応答の脚本JSONが不正です (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	return plan, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
