package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	imgdom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-cinema-kit/pkg/config"
	"github.com/shouni/go-cinema-kit/pkg/domain"
	"github.com/shouni/go-cinema-kit/pkg/gate"
	"github.com/shouni/go-cinema-kit/pkg/media"
)

// stubImages は呼び出しを記録しつつダミー画像を返すのだ。
type stubImages struct {
	mu          sync.Mutex
	portraits   int
	composeRefs [][]string
	editSources []string
}

func (s *stubImages) GeneratePortrait(_ context.Context, _ string) (*imgdom.ImageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portraits++
	return &imgdom.ImageResponse{Data: []byte("img"), MimeType: "image/jpeg"}, nil
}

func (s *stubImages) ComposeScene(_ context.Context, _ string, refPaths []string) (*imgdom.ImageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composeRefs = append(s.composeRefs, append([]string(nil), refPaths...))
	return &imgdom.ImageResponse{Data: []byte("img"), MimeType: "image/jpeg"}, nil
}

func (s *stubImages) EditImage(_ context.Context, _ string, sourcePath string) (*imgdom.ImageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editSources = append(s.editSources, sourcePath)
	return &imgdom.ImageResponse{Data: []byte("img2"), MimeType: "image/jpeg"}, nil
}

// stubEvaluator は呼ばれた順にスコアを返すのだ。
type stubEvaluator struct {
	mu     sync.Mutex
	scores []float64
	calls  int
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ string, _ []gate.Image) (*domain.ConsistencyScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.scores) {
		return nil, fmt.Errorf("想定外の審査呼び出し #%d", s.calls+1)
	}
	v := s.scores[s.calls]
	s.calls++
	return &domain.ConsistencyScore{OverallScore: v, Issues: []string{"hair mismatch"}, FixPrompt: "fix the hair"}, nil
}

// memStore はメモリ上のアセット置き場なのだ。
type memStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	fetched []string
}

func newMemStore() *memStore {
	return &memStore{saved: map[string][]byte{}}
}

func (m *memStore) SaveBytes(_ context.Context, path string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[path] = data
	return nil
}

func (m *memStore) ReadBytes(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.saved[path]; ok {
		return data, nil
	}
	return []byte("frame"), nil
}

func (m *memStore) FetchAndStore(_ context.Context, url, destPath, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, url)
	m.saved[destPath] = []byte("video")
	return destPath, nil
}

type stubFrames struct{}

func (stubFrames) ExtractFirstFrame(_ context.Context, _, _ string) error { return nil }
func (stubFrames) ExtractLastFrame(_ context.Context, _, _ string) error  { return nil }

// stubVideos はタスクごとに一意なURLを返すのだ。
// edits には修正タスクの元クリップURLを記録するのだ。
type stubVideos struct {
	mu    sync.Mutex
	calls int
	edits []string
}

func (s *stubVideos) Generate(_ context.Context, req media.VideoTaskRequest) (*media.VideoTaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &media.VideoTaskResult{
		VideoURL:        fmt.Sprintf("https://example.com/clip_%d.mp4", s.calls),
		DurationSeconds: req.DurationSeconds,
	}, nil
}

func (s *stubVideos) Edit(_ context.Context, _ string, sourceVideoURL string) (*media.VideoTaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.edits = append(s.edits, sourceVideoURL)
	// 実サービスの修正タスクは尺を応答に含めないので 0 のままにするのだ
	return &media.VideoTaskResult{
		VideoURL: fmt.Sprintf("https://example.com/edit_%d.mp4", s.calls),
	}, nil
}

func twoScenePlan() *domain.StoryPlan {
	return &domain.StoryPlan{
		Title: "星降る夜の約束",
		Style: "watercolor anime",
		Characters: []domain.Character{
			{Name: "ミカ", VisualDescription: "short silver hair"},
			{Name: "レン", VisualDescription: "black hair, glasses"},
		},
		Scenes: []domain.Scene{
			{SceneID: 1, Title: "出会い", Description: "丘の上", CharactersPresent: []string{"ミカ"}, DurationSeconds: 6},
			{SceneID: 2, Title: "約束", Description: "流星の下", CharactersPresent: []string{"ミカ", "レン"}, DurationSeconds: 7},
		},
	}
}

func TestPortraitRunner(t *testing.T) {
	t.Run("不合格のポートレートは修正してから確定するのだ", func(t *testing.T) {
		plan := &domain.StoryPlan{
			Style:      "watercolor anime",
			Characters: []domain.Character{{Name: "ミカ", VisualDescription: "short silver hair"}},
			Scenes:     []domain.Scene{{SceneID: 1, Title: "t", Description: "d", DurationSeconds: 5}},
		}
		images := &stubImages{}
		eval := &stubEvaluator{scores: []float64{0.70, 0.86}}
		store := newMemStore()

		r := NewPortraitRunner(images, eval, store, config.DefaultTuning(), "out", 0)
		assets, err := r.Run(context.Background(), plan)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}

		a := assets["ミカ"]
		if a == nil {
			t.Fatal("アセットが登録されていないのだ")
		}
		if a.Score.OverallScore != 0.86 || a.GenerationAttempts != 2 {
			t.Errorf("確定内容が違うのだ: %+v", a)
		}
		if images.portraits != 1 || len(images.editSources) != 1 {
			t.Errorf("新規1回+修正1回になっていないのだ: portraits=%d edits=%d", images.portraits, len(images.editSources))
		}
		if !strings.Contains(a.PortraitPath, "ミカ_v2") {
			t.Errorf("採用版のパスが違うのだ: %s", a.PortraitPath)
		}
	})

	t.Run("修正呼び出しも生成と同じレート枠で数えるのだ", func(t *testing.T) {
		plan := &domain.StoryPlan{
			Style:      "watercolor anime",
			Characters: []domain.Character{{Name: "ミカ", VisualDescription: "short silver hair"}},
			Scenes:     []domain.Scene{{SceneID: 1, Title: "t", Description: "d", DurationSeconds: 5}},
		}
		images := &stubImages{}
		eval := &stubEvaluator{scores: []float64{0.70, 0.72, 0.74}}

		// バースト2を初回生成+修正1回で使い切るので、2回目の修正は
		// 締切付きコンテキストの中では順番待ちできずに失敗するはずなのだ
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		r := NewPortraitRunner(images, eval, newMemStore(), config.DefaultTuning(), "out", time.Hour)
		if _, err := r.Run(ctx, plan); err == nil {
			t.Fatal("レート制限を無視して修正が走ってしまったのだ")
		}
		if images.portraits != 1 || len(images.editSources) != 1 {
			t.Errorf("締切前に進んだ呼び出し数が違うのだ: portraits=%d edits=%d", images.portraits, len(images.editSources))
		}
	})
}

func TestKeyframeRunner(t *testing.T) {
	t.Run("2シーン目は前シーンの確定キーフレームを参照に含めるのだ", func(t *testing.T) {
		plan := twoScenePlan()
		images := &stubImages{}
		eval := &stubEvaluator{scores: []float64{0.9, 0.9}}
		store := newMemStore()
		chars := domain.CharacterAssets{
			"ミカ": {Name: "ミカ", PortraitPath: "out/character_sheets/ミカ_v1.jpg"},
			"レン": {Name: "レン", PortraitPath: "out/character_sheets/レン_v1.jpg"},
		}

		r := NewKeyframeRunner(images, eval, store, config.DefaultTuning(), "out")
		keyframes, err := r.Run(context.Background(), plan, chars)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if len(keyframes) != 2 {
			t.Fatalf("キーフレーム数が違うのだ: %d", len(keyframes))
		}

		if len(images.composeRefs[0]) != 1 {
			t.Errorf("最初のシーンの参照数が違うのだ: %v", images.composeRefs[0])
		}
		secondRefs := images.composeRefs[1]
		if len(secondRefs) != 3 {
			t.Fatalf("2シーン目の参照数が違うのだ: %v", secondRefs)
		}
		if secondRefs[2] != keyframes[0].KeyframePath {
			t.Errorf("継続性参照が前シーンの確定キーフレームではないのだ: %v", secondRefs)
		}
		if keyframes[0].VideoPrompt == "" {
			t.Error("動画用プロンプトが焼き込まれていないのだ")
		}
	})

	t.Run("上限までだめでも最良候補を次シーンへ渡すのだ", func(t *testing.T) {
		plan := twoScenePlan()
		images := &stubImages{}
		// シーン1: 0.6 → 0.72 → 0.68 で打ち切り、シーン2: 0.9 で即合格
		eval := &stubEvaluator{scores: []float64{0.60, 0.72, 0.68, 0.90}}
		store := newMemStore()
		chars := domain.CharacterAssets{
			"ミカ": {Name: "ミカ", PortraitPath: "out/character_sheets/ミカ_v1.jpg"},
			"レン": {Name: "レン", PortraitPath: "out/character_sheets/レン_v1.jpg"},
		}

		r := NewKeyframeRunner(images, eval, store, config.DefaultTuning(), "out")
		keyframes, err := r.Run(context.Background(), plan, chars)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if keyframes[0].Score.OverallScore != 0.72 {
			t.Errorf("最良候補が選ばれていないのだ: %+v", keyframes[0])
		}
		secondRefs := images.composeRefs[1]
		if secondRefs[len(secondRefs)-1] != keyframes[0].KeyframePath {
			t.Errorf("不合格シーンの最良候補が継続性参照になっていないのだ: %v", secondRefs)
		}
	})
}

func TestSceneVideoRunner(t *testing.T) {
	chars := domain.CharacterAssets{
		"ミカ": {Name: "ミカ", PortraitPath: "out/character_sheets/ミカ_v1.jpg"},
	}
	keyframes := []*domain.KeyframeAsset{
		{SceneID: 1, KeyframePath: "out/keyframes/scene_1_v1.jpg", VideoPrompt: "animate"},
	}

	t.Run("短いクリップは修正パスで作り直せるのだ", func(t *testing.T) {
		plan := &domain.StoryPlan{
			Style:      "watercolor anime",
			Characters: []domain.Character{{Name: "ミカ", VisualDescription: "short silver hair"}},
			Scenes:     []domain.Scene{{SceneID: 1, Title: "t", Description: "d", CharactersPresent: []string{"ミカ"}, DurationSeconds: 6}},
		}
		videos := &stubVideos{}
		eval := &stubEvaluator{scores: []float64{0.70, 0.85}}

		r := NewSceneVideoRunner(videos, eval, newMemStore(), stubFrames{}, config.DefaultTuning(), "out")
		out, err := r.Run(context.Background(), plan, chars, keyframes)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if videos.calls != 2 || out[0].CorrectionPasses != 1 {
			t.Errorf("修正1回で確定していないのだ: calls=%d asset=%+v", videos.calls, out[0])
		}
		if len(videos.edits) != 1 || videos.edits[0] != "https://example.com/clip_1.mp4" {
			t.Errorf("最良クリップを元にした修正になっていないのだ: %v", videos.edits)
		}
		if out[0].DurationSeconds != 6 {
			t.Errorf("修正クリップが元の尺を引き継いでいないのだ: %+v", out[0])
		}
	})

	t.Run("短いクリップが最後まで不合格でも修正は2回で打ち切るのだ", func(t *testing.T) {
		plan := &domain.StoryPlan{
			Style:      "watercolor anime",
			Characters: []domain.Character{{Name: "ミカ", VisualDescription: "short silver hair"}},
			Scenes:     []domain.Scene{{SceneID: 1, Title: "t", Description: "d", CharactersPresent: []string{"ミカ"}, DurationSeconds: 6}},
		}
		videos := &stubVideos{}
		eval := &stubEvaluator{scores: []float64{0.70, 0.72, 0.71}}

		r := NewSceneVideoRunner(videos, eval, newMemStore(), stubFrames{}, config.DefaultTuning(), "out")
		out, err := r.Run(context.Background(), plan, chars, keyframes)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if videos.calls != 3 || out[0].CorrectionPasses != 2 {
			t.Errorf("新規1回+修正2回になっていないのだ: calls=%d asset=%+v", videos.calls, out[0])
		}
		if out[0].Score.OverallScore != 0.72 {
			t.Errorf("最良候補で進んでいないのだ: %+v", out[0])
		}
		// 2回目の修正は、スコアが上がった1回目の修正結果を元にするのだ
		want := []string{"https://example.com/clip_1.mp4", "https://example.com/edit_2.mp4"}
		if len(videos.edits) != 2 || videos.edits[0] != want[0] || videos.edits[1] != want[1] {
			t.Errorf("修正元クリップの系譜が違うのだ: %v", videos.edits)
		}
	})

	t.Run("長いクリップは救済ラインより上なら1回で打ち切るのだ", func(t *testing.T) {
		plan := &domain.StoryPlan{
			Style:      "watercolor anime",
			Characters: []domain.Character{{Name: "ミカ", VisualDescription: "short silver hair"}},
			Scenes:     []domain.Scene{{SceneID: 1, Title: "t", Description: "d", CharactersPresent: []string{"ミカ"}, DurationSeconds: 12}},
		}
		videos := &stubVideos{}
		eval := &stubEvaluator{scores: []float64{0.62}}

		r := NewSceneVideoRunner(videos, eval, newMemStore(), stubFrames{}, config.DefaultTuning(), "out")
		out, err := r.Run(context.Background(), plan, chars, keyframes)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if videos.calls != 1 {
			t.Errorf("修正できない長尺クリップを作り直してしまったのだ: calls=%d", videos.calls)
		}
		if out[0].Score.OverallScore != 0.62 {
			t.Errorf("最良候補で進んでいないのだ: %+v", out[0])
		}
	})

	t.Run("長いクリップでも救済ラインを割ったら1回だけ作り直すのだ", func(t *testing.T) {
		plan := &domain.StoryPlan{
			Style:      "watercolor anime",
			Characters: []domain.Character{{Name: "ミカ", VisualDescription: "short silver hair"}},
			Scenes:     []domain.Scene{{SceneID: 1, Title: "t", Description: "d", CharactersPresent: []string{"ミカ"}, DurationSeconds: 12}},
		}
		videos := &stubVideos{}
		eval := &stubEvaluator{scores: []float64{0.30, 0.55}}

		r := NewSceneVideoRunner(videos, eval, newMemStore(), stubFrames{}, config.DefaultTuning(), "out")
		out, err := r.Run(context.Background(), plan, chars, keyframes)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if videos.calls != 2 {
			t.Errorf("救済の作り直しが1回になっていないのだ: calls=%d", videos.calls)
		}
		if out[0].Score.OverallScore != 0.55 || out[0].CorrectionPasses != 0 {
			t.Errorf("救済は修正ではなく新規生成のはずなのだ: %+v", out[0])
		}
	})
}

// recordingAssembler は呼び出し順を記録するのだ。
type recordingAssembler struct {
	normalized []string
	concat     []string
	final      string
}

func (r *recordingAssembler) NormalizeClip(_ context.Context, inPath, outPath string) error {
	r.normalized = append(r.normalized, inPath)
	return nil
}

func (r *recordingAssembler) ConcatClips(_ context.Context, clipPaths []string, outPath string) error {
	r.concat = append([]string(nil), clipPaths...)
	r.final = outPath
	return nil
}

func TestAssemblyRunner(t *testing.T) {
	t.Run("シーンIDの昇順に正規化してから結合するのだ", func(t *testing.T) {
		asmb := &recordingAssembler{}
		r := NewAssemblyRunner(asmb, newMemStore(), "out")
		videos := []*domain.VideoAsset{
			{SceneID: 2, VideoPath: "out/videos/scene_2_v1.mp4"},
			{SceneID: 1, VideoPath: "out/videos/scene_1_v1.mp4"},
		}
		final, err := r.Run(context.Background(), videos)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if asmb.normalized[0] != "out/videos/scene_1_v1.mp4" {
			t.Errorf("正規化の順序が違うのだ: %v", asmb.normalized)
		}
		if len(asmb.concat) != 2 || !strings.Contains(asmb.concat[0], "normalized_scene_1") {
			t.Errorf("結合対象が正規化済みクリップではないのだ: %v", asmb.concat)
		}
		if !strings.HasSuffix(final, "film.mp4") {
			t.Errorf("最終動画のパスが違うのだ: %s", final)
		}
	})

	t.Run("クリップが1本だけならそのまま最終動画へ複製するのだ", func(t *testing.T) {
		asmb := &recordingAssembler{}
		store := newMemStore()
		store.saved["out/videos/scene_1_v1.mp4"] = []byte("only clip")

		r := NewAssemblyRunner(asmb, store, "out")
		final, err := r.Run(context.Background(), []*domain.VideoAsset{
			{SceneID: 1, VideoPath: "out/videos/scene_1_v1.mp4"},
		})
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if len(asmb.normalized) != 0 || len(asmb.concat) != 0 {
			t.Errorf("1本だけなのに正規化や結合が走ってしまったのだ: %+v", asmb)
		}
		if !strings.HasSuffix(final, "film.mp4") {
			t.Errorf("最終動画のパスが違うのだ: %s", final)
		}
		if string(store.saved[final]) != "only clip" {
			t.Errorf("元クリップがそのまま複製されていないのだ: %q", store.saved[final])
		}
	})

	t.Run("クリップゼロはエラーなのだ", func(t *testing.T) {
		r := NewAssemblyRunner(&recordingAssembler{}, newMemStore(), "out")
		if _, err := r.Run(context.Background(), nil); err == nil {
			t.Error("空入力が通ってしまったのだ")
		}
	})
}
