// Package loop は「生成→審査→条件付き修正」の反復制御を担当します。
//
// どの段階（ポートレート、キーフレーム、動画）でも制御構造は同じなので、
// 生成・修正・審査をクロージャで差し替えられる1つのエンジンに集約しています。
package loop

import (
	"context"
	"fmt"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

// Attempt は1回分の試行結果です。
type Attempt[A any] struct {
	Asset A
	Score *domain.ConsistencyScore
	// Index は 1 始まりの試行番号です。
	Index int
	// Corrected は既存候補への修正で得たかどうかです。false なら新規生成。
	Corrected bool
}

// Result は反復全体の結果です。Accepted が false のときは上限まで回しきった
// 上での最良候補が入っています。呼び出し側はそれを採用して先へ進みます。
type Result[A any] struct {
	Best     Attempt[A]
	Attempts int
	Accepted bool
}

// Params は反復エンジンの設定です。
type Params[A any] struct {
	// Threshold 以上のスコアで合格です。
	Threshold float64
	// MaxAttempts は初回生成を含む試行回数の上限です。
	MaxAttempts int
	// Generate は attempt 番号を受けて新規候補を作ります。
	Generate func(ctx context.Context, attempt int) (A, error)
	// Correct は最良候補とその審査結果から修正版を作ります。
	// nil のときは修正パスを持たない段階として扱います。
	Correct func(ctx context.Context, best A, score *domain.ConsistencyScore, attempt int) (A, error)
	// Score は候補を審査します。エラーは即座に伝播します（既定値ゼロへの
	// 黙った丸めはしない）。
	Score func(ctx context.Context, candidate A) (*domain.ConsistencyScore, error)
	// CorrectionAllowed が false のとき Correct は使いません。
	CorrectionAllowed bool
	// RegenerateFloor は修正不可の段階での救済ラインです。正の値のとき、
	// 初回スコアがこの値を下回ったら新規生成を1回だけ追加で試します。
	RegenerateFloor float64
}

// Run は合格するか上限に達するまで候補を作り続けます。
//
// 最良候補の更新は「厳密により大きい」ときだけです。同点なら先に得た
// 候補を保持します。後の試行は計算資源を余分に使っているだけなのだ。
func Run[A any](ctx context.Context, p Params[A]) (*Result[A], error) {
	if p.MaxAttempts < 1 {
		return nil, fmt.Errorf("試行回数の上限が不正です: %d", p.MaxAttempts)
	}

	var result Result[A]
	regenerated := false

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		var (
			candidate A
			corrected bool
			err       error
		)
		switch {
		case attempt == 1:
			candidate, err = p.Generate(ctx, attempt)
		case p.CorrectionAllowed && p.Correct != nil:
			candidate, err = p.Correct(ctx, result.Best.Asset, result.Best.Score, attempt)
			corrected = true
		case p.RegenerateFloor > 0 && !regenerated && result.Best.Score.OverallScore < p.RegenerateFloor:
			// 修正パスを持たない段階の救済。完全な作り直しを1回だけ許すのだ。
			candidate, err = p.Generate(ctx, attempt)
			regenerated = true
		default:
			// 修正もできず救済ラインも割っていないなら、これ以上の試行は無駄。
			return &result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("試行 %d の候補生成に失敗しました: %w", attempt, err)
		}

		score, err := p.Score(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("試行 %d の審査に失敗しました: %w", attempt, err)
		}

		result.Attempts = attempt
		if attempt == 1 || score.OverallScore > result.Best.Score.OverallScore {
			result.Best = Attempt[A]{Asset: candidate, Score: score, Index: attempt, Corrected: corrected}
		}

		if score.Passed(p.Threshold) {
			result.Accepted = true
			return &result, nil
		}
	}
	return &result, nil
}
