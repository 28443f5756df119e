package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-cinema-kit/pkg/asset"
	"github.com/shouni/go-cinema-kit/pkg/config"
	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/gate"
	"github.com/shouni/go-cinema-kit/pkg/loop"
	"github.com/shouni/go-cinema-kit/pkg/prompts"
)

// imageCandidate は審査待ちの画像1枚分です。保存先とバイト列を一緒に持ち回ります。
type imageCandidate struct {
	path string
	data []byte
	mime string
}

// PortraitRunner は全キャラクターのポートレートを確定させる実行器です。
// キャラクター同士は独立なので並列に処理します。
type PortraitRunner struct {
	images    ImageComposer
	evaluator Evaluator
	store     AssetStore
	tuning    config.Tuning
	baseDir   string
	limiter   *rate.Limiter
}

// NewPortraitRunner は依存関係を注入して初期化します。
// interval が0のときはレート制限なしで動きます。
func NewPortraitRunner(images ImageComposer, evaluator Evaluator, store AssetStore, tuning config.Tuning, baseDir string, interval time.Duration) *PortraitRunner {
	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 2)
	}
	return &PortraitRunner{
		images:    images,
		evaluator: evaluator,
		store:     store,
		tuning:    tuning,
		baseDir:   baseDir,
		limiter:   limiter,
	}
}

// pace は生成系API呼び出しの間隔を空けるのだ。修正呼び出しも同じ枠で数える。
func (pr *PortraitRunner) pace(ctx context.Context) error {
	if pr.limiter == nil {
		return nil
	}
	return pr.limiter.Wait(ctx)
}

// Run は脚本の全キャラクターについて、合格するか上限に達するまで
// 生成と修正を繰り返し、確定アセットの索引を返します。
func (pr *PortraitRunner) Run(ctx context.Context, plan *domain.StoryPlan) (domain.CharacterAssets, error) {
	assets := make(domain.CharacterAssets, len(plan.Characters))
	results := make([]*domain.CharacterAsset, len(plan.Characters))

	eg, egCtx := errgroup.WithContext(ctx)

	for i := range plan.Characters {
		i := i
		char := &plan.Characters[i]
		eg.Go(func() error {
			a, err := pr.runCharacter(egCtx, char, plan.Style)
			if err != nil {
				return fmt.Errorf("キャラクター %q のポートレート確定に失敗しました: %w", char.Name, err)
			}
			results[i] = a
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, a := range results {
		assets[a.Name] = a
	}
	slog.Info("すべてのポートレートが確定したのだ", "total", len(assets))
	return assets, nil
}

func (pr *PortraitRunner) runCharacter(ctx context.Context, char *domain.Character, style string) (*domain.CharacterAsset, error) {
	judgeInstruction := prompts.BuildPortraitJudgePrompt(char)

	result, err := loop.Run(ctx, loop.Params[imageCandidate]{
		Threshold:         pr.tuning.ScoreThreshold,
		MaxAttempts:       pr.tuning.MaxPortraitAttempts,
		CorrectionAllowed: true,
		Generate: func(ctx context.Context, attempt int) (imageCandidate, error) {
			if err := pr.pace(ctx); err != nil {
				return imageCandidate{}, err
			}
			prompt := prompts.BuildPortraitPrompt(char, style)
			resp, err := pr.images.GeneratePortrait(ctx, prompt)
			if err != nil {
				return imageCandidate{}, err
			}
			return pr.saveCandidate(ctx, char.Name, attempt, resp.Data, resp.MimeType)
		},
		Correct: func(ctx context.Context, best imageCandidate, score *domain.ConsistencyScore, attempt int) (imageCandidate, error) {
			if err := pr.pace(ctx); err != nil {
				return imageCandidate{}, err
			}
			prompt := prompts.BuildEditPrompt(score.CorrectionPrompt())
			resp, err := pr.images.EditImage(ctx, prompt, best.path)
			if err != nil {
				return imageCandidate{}, err
			}
			return pr.saveCandidate(ctx, char.Name, attempt, resp.Data, resp.MimeType)
		},
		Score: func(ctx context.Context, c imageCandidate) (*domain.ConsistencyScore, error) {
			return pr.evaluator.Evaluate(ctx, judgeInstruction, []gate.Image{{Data: c.data, MIME: c.mime}})
		},
	})
	if err != nil {
		return nil, err
	}

	if !result.Accepted {
		slog.Warn("ポートレートが閾値に届かないまま上限に達したので最良候補で進むのだ",
			"character", char.Name,
			"best_score", result.Best.Score.OverallScore,
			"attempts", result.Attempts,
		)
	} else {
		slog.Info("ポートレート確定", "character", char.Name, "score", result.Best.Score.OverallScore, "attempts", result.Attempts)
	}

	return &domain.CharacterAsset{
		Name:               char.Name,
		PortraitPath:       result.Best.Asset.path,
		VisualDescription:  char.VisualDescription,
		Score:              result.Best.Score,
		GenerationAttempts: result.Attempts,
	}, nil
}

func (pr *PortraitRunner) saveCandidate(ctx context.Context, name string, version int, data []byte, mime string) (imageCandidate, error) {
	path, err := asset.PortraitPath(pr.baseDir, name, version)
	if err != nil {
		return imageCandidate{}, err
	}
	if err := pr.store.SaveBytes(ctx, path, data, mime); err != nil {
		return imageCandidate{}, err
	}
	return imageCandidate{path: path, data: data, mime: mime}, nil
}
