// Package gate は視覚審査の呼び出しと判定応答の解釈を担当します。
//
// 審査モデルの応答は壊れていることがあります。壊れた応答をスコア0として
// 扱うと健全な候補が捨てられてしまうため、ここでは解釈不能を明確な
// エラーとして区別します。
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shouni/go-cinema-kit/pkg/domain"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// ErrMalformedJudgment は再試行してもなお審査応答を解釈できなかったことを示します。
var ErrMalformedJudgment = errors.New("審査応答を解釈できませんでした")

// maxParseRetries は解釈不能だったときの同一入力での再審査回数です。
const maxParseRetries = 2

// Image は審査モデルに渡す画像1枚分です。
type Image struct {
	Data []byte
	MIME string
}

// Judge は画像群と指示文を受けて審査応答の生テキストを返します。
type Judge interface {
	Judge(ctx context.Context, instruction string, images []Image) (string, error)
}

// Gate は審査の実行と応答解釈をまとめた評価器です。
type Gate struct {
	judge Judge
}

func New(judge Judge) *Gate {
	return &Gate{judge: judge}
}

// Evaluate は審査を実行し、検証済みのスコアを返します。
//
// 通信エラーは即座に伝播します。応答が解釈できない場合だけは同じ入力で
// 最大2回審査をやり直し、それでもだめなら ErrMalformedJudgment を返すのだ。
func (g *Gate) Evaluate(ctx context.Context, instruction string, images []Image) (*domain.ConsistencyScore, error) {
	var lastParseErr error
	for try := 0; try <= maxParseRetries; try++ {
		raw, err := g.judge.Judge(ctx, instruction, images)
		if err != nil {
			return nil, fmt.Errorf("審査モデルの呼び出しに失敗しました: %w", err)
		}

		score, err := parseJudgment(raw)
		if err == nil {
			return score, nil
		}
		lastParseErr = err
		slog.Warn("審査応答の解釈に失敗、同じ入力で再審査するのだ", "try", try+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedJudgment, lastParseErr)
}

// parseJudgment は応答テキストからスコアJSONを取り出して検証します。
func parseJudgment(raw string) (*domain.ConsistencyScore, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("応答が空です")
	}

	var rawJSON string
	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		// Fallback 1: Find the outermost JSON object.
		firstBracket := strings.Index(raw, "{")
		lastBracket := strings.LastIndex(raw, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			rawJSON = raw[firstBracket : lastBracket+1]
		} else {
			// Fallback 2: Assume the entire response is JSON.
			rawJSON = raw
		}
	}

	var score domain.ConsistencyScore
	dec := json.NewDecoder(strings.NewReader(rawJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&score); err != nil {
		return nil, fmt.Errorf("応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	if err := score.Validate(); err != nil {
		return nil, fmt.Errorf("審査スコアが契約に違反しています: %w", err)
	}
	return &score, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
