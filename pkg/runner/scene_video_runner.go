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
	"github.com/shouni/go-cinema-kit/pkg/media"
	"github.com/shouni/go-cinema-kit/pkg/prompts"
	"github.com/shouni/go-cinema-kit/pkg/refs"
)

// videoCandidate は審査待ちのクリップ1本分です。
// 審査はクリップそのものではなく先頭と末尾の代表フレームで行います。
// url は生成サービス側の一時URLで、修正タスクの元クリップ指定に使います。
type videoCandidate struct {
	path       string
	url        string
	duration   int
	firstFrame string
	lastFrame  string
}

// SceneVideoRunner はキーフレームからシーンクリップを確定させる実行器です。
// キーフレーム同様、脚本順の逐次処理です。
type SceneVideoRunner struct {
	videos    VideoTasker
	evaluator Evaluator
	store     AssetStore
	frames    FrameExtractor
	tuning    config.Tuning
	baseDir   string
}

// NewSceneVideoRunner は依存関係を注入して初期化します。
func NewSceneVideoRunner(videos VideoTasker, evaluator Evaluator, store AssetStore, frames FrameExtractor, tuning config.Tuning, baseDir string) *SceneVideoRunner {
	return &SceneVideoRunner{
		videos:    videos,
		evaluator: evaluator,
		store:     store,
		frames:    frames,
		tuning:    tuning,
		baseDir:   baseDir,
	}
}

// Run は全シーンのクリップを脚本順に確定させます。
func (vr *SceneVideoRunner) Run(ctx context.Context, plan *domain.StoryPlan, chars domain.CharacterAssets, keyframes []*domain.KeyframeAsset) ([]*domain.VideoAsset, error) {
	videos := make([]*domain.VideoAsset, 0, len(plan.Scenes))
	for i := range plan.Scenes {
		scene := &plan.Scenes[i]
		var kf *domain.KeyframeAsset
		for _, candidate := range keyframes {
			if candidate.SceneID == scene.SceneID {
				kf = candidate
				break
			}
		}
		if kf == nil {
			return nil, fmt.Errorf("シーン %d のキーフレームが見つかりません", scene.SceneID)
		}

		v, err := vr.runScene(ctx, scene, chars, kf)
		if err != nil {
			return nil, fmt.Errorf("シーン %d のクリップ確定に失敗しました: %w", scene.SceneID, err)
		}
		videos = append(videos, v)
	}
	slog.Info("すべてのクリップが確定したのだ", "total", len(videos))
	return videos, nil
}

func (vr *SceneVideoRunner) runScene(ctx context.Context, scene *domain.Scene, chars domain.CharacterAssets, kf *domain.KeyframeAsset) (*domain.VideoAsset, error) {
	// 長いクリップの作り直しは高くつくので、尺が上限以下のときだけ修正を許す
	correctionAllowed := scene.DurationSeconds <= vr.tuning.CorrectionMaxDuration

	allocated, err := refs.Allocate(scene, chars, nil)
	if err != nil {
		return nil, err
	}
	portraits := refs.Portraits(allocated)
	portraitImages, err := vr.loadPortraitImages(ctx, portraits)
	if err != nil {
		return nil, err
	}
	judgeInstruction := prompts.BuildVideoJudgePrompt(scene, portraits)

	keyframeRef := kf.KeyframeURL
	if keyframeRef == "" {
		keyframeRef = kf.KeyframePath
	}

	corrections := 0
	result, err := loop.Run(ctx, loop.Params[videoCandidate]{
		Threshold:         vr.tuning.ScoreThreshold,
		MaxAttempts:       vr.tuning.MaxVideoAttempts,
		CorrectionAllowed: correctionAllowed,
		RegenerateFloor:   vr.tuning.RegenerateFloor,
		Generate: func(ctx context.Context, attempt int) (videoCandidate, error) {
			return vr.generateClip(ctx, scene, keyframeRef, kf.VideoPrompt, attempt)
		},
		Correct: func(ctx context.Context, best videoCandidate, score *domain.ConsistencyScore, attempt int) (videoCandidate, error) {
			corrections++
			// 作り直しではなく、最良クリップそのものへの外科的修正。
			// 尺と比率は元クリップから引き継がれる。
			prompt := prompts.BuildVideoCorrectionPrompt(scene, score.Issues)
			taskResult, err := vr.videos.Edit(ctx, prompt, best.url)
			if err != nil {
				return videoCandidate{}, err
			}
			return vr.persistClip(ctx, scene, taskResult, best.duration, attempt)
		},
		Score: func(ctx context.Context, c videoCandidate) (*domain.ConsistencyScore, error) {
			frames, err := vr.loadFrames(ctx, c)
			if err != nil {
				return nil, err
			}
			return vr.evaluator.Evaluate(ctx, judgeInstruction, append(frames, portraitImages...))
		},
	})
	if err != nil {
		return nil, err
	}

	if !result.Accepted {
		slog.Warn("クリップが閾値に届かないまま打ち切ったので最良候補で進むのだ",
			"scene", scene.SceneID,
			"best_score", result.Best.Score.OverallScore,
			"attempts", result.Attempts,
			"correction_allowed", correctionAllowed,
		)
	} else {
		slog.Info("クリップ確定", "scene", scene.SceneID, "score", result.Best.Score.OverallScore, "attempts", result.Attempts)
	}

	best := result.Best.Asset
	return &domain.VideoAsset{
		SceneID:          scene.SceneID,
		VideoPath:        best.path,
		DurationSeconds:  best.duration,
		FirstFramePath:   best.firstFrame,
		LastFramePath:    best.lastFrame,
		Score:            result.Best.Score,
		CorrectionPasses: corrections,
	}, nil
}

func (vr *SceneVideoRunner) generateClip(ctx context.Context, scene *domain.Scene, keyframeRef, prompt string, attempt int) (videoCandidate, error) {
	taskResult, err := vr.videos.Generate(ctx, media.VideoTaskRequest{
		Prompt:          prompt,
		KeyframeURL:     keyframeRef,
		DurationSeconds: scene.DurationSeconds,
	})
	if err != nil {
		return videoCandidate{}, err
	}
	return vr.persistClip(ctx, scene, taskResult, scene.DurationSeconds, attempt)
}

// persistClip は完了タスクの成果物をダウンロードし、代表フレームまで揃えます。
// fallbackDuration はタスク応答に尺が無いときの補完値です。
func (vr *SceneVideoRunner) persistClip(ctx context.Context, scene *domain.Scene, taskResult *media.VideoTaskResult, fallbackDuration, attempt int) (videoCandidate, error) {
	destPath, err := asset.SceneVideoPath(vr.baseDir, scene.SceneID, attempt)
	if err != nil {
		return videoCandidate{}, err
	}
	localPath, err := vr.store.FetchAndStore(ctx, taskResult.VideoURL, destPath, "video/mp4")
	if err != nil {
		return videoCandidate{}, err
	}

	firstPath, err := asset.FramePath(vr.baseDir, scene.SceneID, attempt, "first")
	if err != nil {
		return videoCandidate{}, err
	}
	lastPath, err := asset.FramePath(vr.baseDir, scene.SceneID, attempt, "last")
	if err != nil {
		return videoCandidate{}, err
	}
	if err := vr.frames.ExtractFirstFrame(ctx, localPath, firstPath); err != nil {
		return videoCandidate{}, err
	}
	if err := vr.frames.ExtractLastFrame(ctx, localPath, lastPath); err != nil {
		return videoCandidate{}, err
	}

	duration := taskResult.DurationSeconds
	if duration == 0 {
		duration = fallbackDuration
	}
	return videoCandidate{
		path:       localPath,
		url:        taskResult.VideoURL,
		duration:   duration,
		firstFrame: firstPath,
		lastFrame:  lastPath,
	}, nil
}

func (vr *SceneVideoRunner) loadFrames(ctx context.Context, c videoCandidate) ([]gate.Image, error) {
	first, err := vr.store.ReadBytes(ctx, c.firstFrame)
	if err != nil {
		return nil, fmt.Errorf("先頭フレームの読み込みに失敗しました: %w", err)
	}
	last, err := vr.store.ReadBytes(ctx, c.lastFrame)
	if err != nil {
		return nil, fmt.Errorf("末尾フレームの読み込みに失敗しました: %w", err)
	}
	return []gate.Image{
		{Data: first, MIME: "image/jpeg"},
		{Data: last, MIME: "image/jpeg"},
	}, nil
}

func (vr *SceneVideoRunner) loadPortraitImages(ctx context.Context, portraits []refs.Ref) ([]gate.Image, error) {
	images := make([]gate.Image, 0, len(portraits))
	for _, p := range portraits {
		data, err := vr.store.ReadBytes(ctx, p.Path)
		if err != nil {
			return nil, fmt.Errorf("ポートレート %q の読み戻しに失敗しました: %w", p.Name, err)
		}
		images = append(images, gate.Image{Data: data, MIME: "image/jpeg"})
	}
	return images, nil
}
