package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-cinema-kit/pkg/asset"
	"github.com/shouni/go-cinema-kit/pkg/config"
	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/gate"
	"github.com/shouni/go-cinema-kit/pkg/loop"
	"github.com/shouni/go-cinema-kit/pkg/prompts"
	"github.com/shouni/go-cinema-kit/pkg/refs"
)

// KeyframeRunner はシーンごとのキーフレームを確定させる実行器です。
//
// シーン N の参照に (N-1) の確定キーフレームを使うため、並列化はできません。
// 脚本の順に畳み込みで処理します。
type KeyframeRunner struct {
	images    ImageComposer
	evaluator Evaluator
	store     AssetStore
	tuning    config.Tuning
	baseDir   string
}

// NewKeyframeRunner は依存関係を注入して初期化します。
func NewKeyframeRunner(images ImageComposer, evaluator Evaluator, store AssetStore, tuning config.Tuning, baseDir string) *KeyframeRunner {
	return &KeyframeRunner{
		images:    images,
		evaluator: evaluator,
		store:     store,
		tuning:    tuning,
		baseDir:   baseDir,
	}
}

// Run は全シーンのキーフレームを脚本順に確定させます。
func (kr *KeyframeRunner) Run(ctx context.Context, plan *domain.StoryPlan, chars domain.CharacterAssets) ([]*domain.KeyframeAsset, error) {
	keyframes := make([]*domain.KeyframeAsset, 0, len(plan.Scenes))
	var continuity *domain.KeyframeAsset

	for i := range plan.Scenes {
		scene := &plan.Scenes[i]
		kf, err := kr.runScene(ctx, plan, scene, chars, continuity)
		if err != nil {
			return nil, fmt.Errorf("シーン %d のキーフレーム確定に失敗しました: %w", scene.SceneID, err)
		}
		keyframes = append(keyframes, kf)
		// 閾値に届かなかった場合も最良候補を次シーンの継続性参照にする
		continuity = kf
	}

	slog.Info("すべてのキーフレームが確定したのだ", "total", len(keyframes))
	return keyframes, nil
}

func (kr *KeyframeRunner) runScene(ctx context.Context, plan *domain.StoryPlan, scene *domain.Scene, chars domain.CharacterAssets, continuity *domain.KeyframeAsset) (*domain.KeyframeAsset, error) {
	allocated, err := refs.Allocate(scene, chars, continuity)
	if err != nil {
		return nil, err
	}
	portraits := refs.Portraits(allocated)

	// 審査には候補と同じポートレートを渡す。生成と審査で参照がずれると
	// スコアの意味がなくなるのだ。
	portraitImages, err := kr.loadPortraitImages(ctx, portraits)
	if err != nil {
		return nil, err
	}
	judgeInstruction := prompts.BuildSceneJudgePrompt(scene, portraits)

	refPaths := make([]string, len(allocated))
	for i, r := range allocated {
		refPaths[i] = r.Path
	}

	editPasses := 0
	result, err := loop.Run(ctx, loop.Params[imageCandidate]{
		Threshold:         kr.tuning.ScoreThreshold,
		MaxAttempts:       kr.tuning.MaxKeyframeAttempts,
		CorrectionAllowed: true,
		Generate: func(ctx context.Context, attempt int) (imageCandidate, error) {
			prompt := prompts.BuildScenePrompt(scene, plan.Style, allocated)
			resp, err := kr.images.ComposeScene(ctx, prompt, refPaths)
			if err != nil {
				return imageCandidate{}, err
			}
			return kr.saveCandidate(ctx, scene.SceneID, attempt, resp.Data, resp.MimeType)
		},
		Correct: func(ctx context.Context, best imageCandidate, score *domain.ConsistencyScore, attempt int) (imageCandidate, error) {
			prompt := prompts.BuildEditPrompt(score.CorrectionPrompt())
			resp, err := kr.images.EditImage(ctx, prompt, best.path)
			if err != nil {
				return imageCandidate{}, err
			}
			editPasses++
			return kr.saveCandidate(ctx, scene.SceneID, attempt, resp.Data, resp.MimeType)
		},
		Score: func(ctx context.Context, c imageCandidate) (*domain.ConsistencyScore, error) {
			images := append([]gate.Image{{Data: c.data, MIME: c.mime}}, portraitImages...)
			return kr.evaluator.Evaluate(ctx, judgeInstruction, images)
		},
	})
	if err != nil {
		return nil, err
	}

	if !result.Accepted {
		slog.Warn("キーフレームが閾値に届かないまま上限に達したので最良候補で進むのだ",
			"scene", scene.SceneID,
			"best_score", result.Best.Score.OverallScore,
			"attempts", result.Attempts,
		)
	} else {
		slog.Info("キーフレーム確定", "scene", scene.SceneID, "score", result.Best.Score.OverallScore, "attempts", result.Attempts)
	}

	return &domain.KeyframeAsset{
		SceneID:            scene.SceneID,
		KeyframePath:       result.Best.Asset.path,
		Score:              result.Best.Score,
		GenerationAttempts: result.Attempts - editPasses,
		EditPasses:         editPasses,
		VideoPrompt:        prompts.BuildVideoPrompt(scene),
	}, nil
}

func (kr *KeyframeRunner) loadPortraitImages(ctx context.Context, portraits []refs.Ref) ([]gate.Image, error) {
	images := make([]gate.Image, 0, len(portraits))
	for _, p := range portraits {
		data, err := kr.store.ReadBytes(ctx, p.Path)
		if err != nil {
			return nil, fmt.Errorf("ポートレート %q の読み戻しに失敗しました: %w", p.Name, err)
		}
		images = append(images, gate.Image{Data: data, MIME: "image/jpeg"})
	}
	return images, nil
}

func (kr *KeyframeRunner) saveCandidate(ctx context.Context, sceneID, version int, data []byte, mime string) (imageCandidate, error) {
	path, err := asset.KeyframePath(kr.baseDir, sceneID, version)
	if err != nil {
		return imageCandidate{}, err
	}
	if err := kr.store.SaveBytes(ctx, path, data, mime); err != nil {
		return imageCandidate{}, err
	}
	return imageCandidate{path: path, data: data, mime: mime}, nil
}
