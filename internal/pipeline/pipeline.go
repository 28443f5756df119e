// Package pipeline は脚本から最終動画までの工程を順に実行するのだ。
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"

	"github.com/shouni/go-cinema-kit/internal/builder"
	"github.com/shouni/go-cinema-kit/internal/config"
	"github.com/shouni/go-cinema-kit/internal/history"
	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/observer"
	"github.com/shouni/go-cinema-kit/pkg/publisher"
	"github.com/shouni/go-cinema-kit/pkg/workflow"
)

// Execute はコンセプトから最終動画までの全工程を実行するのだ。
func Execute(ctx context.Context, cfg *config.Config, obs observer.Observer) error {
	if obs == nil {
		obs = observer.NullObserver{}
	}

	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	state, err := runPlanStep(ctx, cfg, appCtx, obs)
	if err != nil {
		return err
	}

	runs, err := openHistory(cfg)
	if err != nil {
		slog.Warn("履歴ストアを開けなかったため記録なしで続行するのだ", "error", err)
	}
	if runs != nil {
		defer runs.Close()
		if err := runs.StartRun(state); err != nil {
			slog.Warn("実行開始の記録に失敗", "error", err)
		}
	}

	if err := runAssetSteps(ctx, cfg, appCtx, state, obs); err != nil {
		finishHistory(runs, state, "failed")
		return err
	}

	finishHistory(runs, state, "completed")
	slog.Info("全工程が完了したのだ！", "run_id", state.RunID, "final", state.FinalVideoPath)
	return nil
}

// ExecutePlanOnly は脚本生成だけ行い、成果をJSONで保存するのだ。
func ExecutePlanOnly(ctx context.Context, cfg *config.Config, obs observer.Observer) error {
	if obs == nil {
		obs = observer.NullObserver{}
	}
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	state, err := runPlanStep(ctx, cfg, appCtx, obs)
	if err != nil {
		return err
	}
	slog.Info("脚本のみ生成が完了したのだ", "run_id", state.RunID, "scenes", len(state.Plan.Scenes))
	return nil
}

// runPlanStep は脚本を生成し、初期状態を保存して返すのだ。
func runPlanStep(ctx context.Context, cfg *config.Config, appCtx *builder.AppContext, obs observer.Observer) (*domain.FilmState, error) {
	runID := uuid.NewString()
	obs.Notify(observer.Event{RunID: runID, Stage: observer.StagePlanning, Kind: "started"})
	slog.Info("Phase 1: 脚本生成を開始するのだ...", "run_id", runID)

	if cfg.Options.PlanFile != "" {
		return loadPlanFromFile(ctx, cfg, appCtx, runID, obs)
	}

	planStage, err := appCtx.Workflow.BuildPlanner()
	if err != nil {
		return nil, fmt.Errorf("Plannerの構築に失敗したのだ: %w", err)
	}

	var plan *domain.StoryPlan
	switch {
	case cfg.Options.ConceptURL != "":
		plan, err = planStage.PlanFromURL(ctx, cfg.Options.ConceptURL, cfg.Options.SceneCount)
	default:
		concept, cerr := resolveConcept(ctx, cfg, appCtx)
		if cerr != nil {
			return nil, cerr
		}
		plan, err = planStage.Plan(ctx, concept, cfg.Options.SceneCount)
	}
	if err != nil {
		obs.Notify(observer.Event{RunID: runID, Stage: observer.StagePlanning, Kind: "failed", Message: err.Error()})
		return nil, fmt.Errorf("脚本生成に失敗したのだ: %w", err)
	}

	plan.ClampDurations(appCtx.Workflow.Tuning().MaxClipDuration)

	state := domain.NewFilmState(runID, plan)
	if err := saveState(ctx, cfg, appCtx, state, obs); err != nil {
		return nil, err
	}

	obs.Notify(observer.Event{RunID: runID, Stage: observer.StagePlanning, Kind: "completed", Message: plan.Title})
	return state, nil
}

// loadPlanFromFile は保存済みの脚本JSONを読み込み、構想工程を飛ばすのだ。
// 状態スナップショット（plan入り）と素の脚本JSONのどちらも受け付ける。
func loadPlanFromFile(ctx context.Context, cfg *config.Config, appCtx *builder.AppContext, runID string, obs observer.Observer) (*domain.FilmState, error) {
	rc, err := appCtx.Reader.Open(ctx, cfg.Options.PlanFile)
	if err != nil {
		return nil, fmt.Errorf("脚本ファイル '%s' の読み込みに失敗したのだ: %w", cfg.Options.PlanFile, err)
	}
	defer rc.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, err
	}

	var plan *domain.StoryPlan
	if prev, derr := domain.DecodeFilmState(buf.Bytes()); derr == nil {
		plan = prev.Plan
	} else if plan, err = domain.ParseStoryPlan(buf.Bytes()); err != nil {
		obs.Notify(observer.Event{RunID: runID, Stage: observer.StagePlanning, Kind: "failed", Message: err.Error()})
		return nil, fmt.Errorf("脚本ファイル '%s' のデコードに失敗したのだ: %w", cfg.Options.PlanFile, err)
	}

	plan.ClampDurations(appCtx.Workflow.Tuning().MaxClipDuration)

	state := domain.NewFilmState(runID, plan)
	if err := saveState(ctx, cfg, appCtx, state, obs); err != nil {
		return nil, err
	}
	obs.Notify(observer.Event{RunID: runID, Stage: observer.StagePlanning, Kind: "completed", Message: plan.Title})
	slog.Info("保存済みの脚本を使うのだ", "plan_file", cfg.Options.PlanFile, "scenes", len(plan.Scenes))
	return state, nil
}

// runAssetSteps はポートレート以降の全工程を状態へ畳み込んでいくのだ。
func runAssetSteps(ctx context.Context, cfg *config.Config, appCtx *builder.AppContext, state *domain.FilmState, obs observer.Observer) error {
	outputDir := cfg.Options.OutputDir

	// --- Phase 2: ポートレート確定 ---
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StagePortraits, Kind: "started"})
	slog.Info("Phase 2: ポートレート生成を開始するのだ...", "characters", len(state.Plan.Characters))
	chars, err := appCtx.Workflow.BuildPortraitRunner(outputDir).Run(ctx, state.Plan)
	if err != nil {
		obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StagePortraits, Kind: "failed", Message: err.Error()})
		return fmt.Errorf("ポートレート生成に失敗したのだ: %w", err)
	}
	state.Characters = chars
	if err := saveState(ctx, cfg, appCtx, state, obs); err != nil {
		return err
	}
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StagePortraits, Kind: "completed"})

	// --- Phase 3: キーフレーム確定 ---
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageKeyframes, Kind: "started"})
	slog.Info("Phase 3: キーフレーム生成を開始するのだ...", "scenes", len(state.Plan.Scenes))
	keyframes, err := appCtx.Workflow.BuildKeyframeRunner(outputDir).Run(ctx, state.Plan, state.Characters)
	if err != nil {
		obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageKeyframes, Kind: "failed", Message: err.Error()})
		return fmt.Errorf("キーフレーム生成に失敗したのだ: %w", err)
	}
	state.Keyframes = keyframes
	if err := saveState(ctx, cfg, appCtx, state, obs); err != nil {
		return err
	}
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageKeyframes, Kind: "completed"})

	// キーフレームが揃った時点で絵コンテを一度書き出すのだ。
	// 動画確定後にクリップ入りで上書きされる。
	if err := runPublishStep(ctx, cfg, appCtx, state, obs); err != nil {
		return err
	}

	// --- Phase 4: シーンクリップ確定 ---
	if cfg.Options.SkipVideo {
		slog.Info("--skip-video が指定されたため動画生成を飛ばすのだ")
		return nil
	}

	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageVideos, Kind: "started"})
	slog.Info("Phase 4: 動画生成を開始するのだ...", "scenes", len(state.Plan.Scenes))
	videos, err := appCtx.Workflow.BuildSceneVideoRunner(outputDir).Run(ctx, state.Plan, state.Characters, state.Keyframes)
	if err != nil {
		obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageVideos, Kind: "failed", Message: err.Error()})
		return fmt.Errorf("動画生成に失敗したのだ: %w", err)
	}
	state.Videos = videos
	if err := saveState(ctx, cfg, appCtx, state, obs); err != nil {
		return err
	}
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageVideos, Kind: "completed"})

	// --- Phase 5: 絵コンテ公開（クリップ入りで更新） ---
	if err := runPublishStep(ctx, cfg, appCtx, state, obs); err != nil {
		return err
	}

	// --- Phase 6: 最終結合 ---
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageAssembly, Kind: "started"})
	slog.Info("Phase 6: 最終結合を開始するのだ...", "clips", len(state.Videos))
	finalPath, err := appCtx.Workflow.BuildAssemblyRunner(outputDir).Run(ctx, state.Videos)
	if err != nil {
		obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageAssembly, Kind: "failed", Message: err.Error()})
		return fmt.Errorf("最終結合に失敗したのだ: %w", err)
	}
	state.FinalVideoPath = finalPath
	if err := saveState(ctx, cfg, appCtx, state, obs); err != nil {
		return err
	}
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageAssembly, Kind: "completed", Message: finalPath})
	return nil
}

// runPublishStep は絵コンテ（Markdown+HTML）と状態を書き出すのだ。
func runPublishStep(ctx context.Context, cfg *config.Config, appCtx *builder.AppContext, state *domain.FilmState, obs observer.Observer) error {
	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageStoryboard, Kind: "started"})
	slog.Info("絵コンテの書き出しを開始するのだ...")

	publishStage, err := appCtx.Workflow.BuildPublisher()
	if err != nil {
		return fmt.Errorf("Publisherの構築に失敗したのだ: %w", err)
	}
	result, err := publishStage.PublishStoryboard(ctx, state, publisher.Options{OutputDir: cfg.Options.OutputDir})
	if err != nil {
		obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageStoryboard, Kind: "failed", Message: err.Error()})
		return fmt.Errorf("絵コンテの書き出しに失敗したのだ: %w", err)
	}

	obs.Notify(observer.Event{RunID: state.RunID, Stage: observer.StageStoryboard, Kind: "completed", Message: result.HTMLPath})
	return nil
}

// setupAppContext は、提供された設定と共有コンポーネントを使用して、アプリケーションコンテキストを初期化して返すのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	timeout := config.DefaultHTTPTimeout
	if cfg.Options.HTTPTimeout > 0 {
		timeout = cfg.Options.HTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	aiClient, err := builder.InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}
	genaiClient, err := builder.InitializeGenAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create judge client: %w", err)
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	wf, err := workflow.NewBuilder(cfg.KitConfig(), httpClient, aiClient, genaiClient, reader, writer)
	if err != nil {
		return nil, fmt.Errorf("Workflowビルダーの構築に失敗したのだ: %w", err)
	}

	appCtx := builder.NewAppContext(cfg, httpClient, reader, writer, wf)
	return &appCtx, nil
}

// resolveConcept は --concept / --concept-file からコンセプト文を決めるのだ。
func resolveConcept(ctx context.Context, cfg *config.Config, appCtx *builder.AppContext) (string, error) {
	if cfg.Options.Concept != "" {
		return cfg.Options.Concept, nil
	}
	if cfg.Options.ConceptFile == "" {
		return "", fmt.Errorf("コンセプトが指定されていないのだ (--concept / --concept-file / --concept-url のいずれかが必要)")
	}

	rc, err := appCtx.Reader.Open(ctx, cfg.Options.ConceptFile)
	if err != nil {
		return "", fmt.Errorf("コンセプトファイル '%s' の読み込みに失敗したのだ: %w", cfg.Options.ConceptFile, err)
	}
	defer rc.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, rc); err != nil {
		return "", err
	}
	concept := strings.TrimSpace(buf.String())
	if concept == "" {
		return "", fmt.Errorf("コンセプトファイル '%s' が空なのだ", cfg.Options.ConceptFile)
	}
	return concept, nil
}

// saveState は現在の状態をJSONとして保存し、観測者へ通知するのだ。
func saveState(ctx context.Context, cfg *config.Config, appCtx *builder.AppContext, state *domain.FilmState, obs observer.Observer) error {
	publishStage, err := appCtx.Workflow.BuildPublisher()
	if err != nil {
		return err
	}
	if _, err := publishStage.SaveState(ctx, state, cfg.Options.OutputDir); err != nil {
		return fmt.Errorf("状態の保存に失敗したのだ: %w", err)
	}
	obs.StateUpdated(state)
	return nil
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.HistoryDBPath == "" {
		return nil, nil
	}
	return history.NewStore(cfg.HistoryDBPath, cfg.KitConfig().Tuning.ScoreThreshold)
}

func finishHistory(runs *history.Store, state *domain.FilmState, status string) {
	if runs == nil {
		return
	}
	if err := runs.FinishRun(state, status); err != nil {
		slog.Warn("実行結果の記録に失敗", "error", err)
	}
}
