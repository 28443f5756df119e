package domain

import (
	"fmt"
	"strings"
)

// ConsistencyScore は視覚審査1回分の判定結果です。
// 審査のたびに新しく生成され、以後は比較にのみ使われます（書き換えない）。
type ConsistencyScore struct {
	// OverallScore は候補画像全体の一致度です。0 が完全な不一致、1 が完全一致。
	OverallScore float64 `json:"overall_score"`
	// PerCharacter はキャラクター名ごとの一致度です。
	PerCharacter map[string]float64 `json:"per_character,omitempty"`
	// Issues は発見された具体的な問題のリストです（例: "hair is brown, should be red"）。
	Issues []string `json:"issues,omitempty"`
	// FixPrompt は問題を外科的に修正するための編集指示です。問題がなければ空。
	FixPrompt string `json:"fix_prompt,omitempty"`
}

// Validate はスコアが契約どおりの範囲に収まっているかを確認します。
// 範囲外の値は外部モデルの応答不良であり、0へ黙って丸めてはいけません。
func (s *ConsistencyScore) Validate() error {
	if s.OverallScore < 0 || s.OverallScore > 1 {
		return fmt.Errorf("overall_score %.3f が範囲 [0,1] の外です", s.OverallScore)
	}
	for name, v := range s.PerCharacter {
		if v < 0 || v > 1 {
			return fmt.Errorf("per_character[%q] = %.3f が範囲 [0,1] の外です", name, v)
		}
	}
	return nil
}

// Passed は閾値以上で合格かどうかを返します。
func (s *ConsistencyScore) Passed(threshold float64) bool {
	return s.OverallScore >= threshold
}

// CorrectionPrompt は修正イテレーションに渡す編集指示を返します。
// 審査側が FixPrompt を返さなかった場合は Issues から保守的な指示を組み立てるのだ。
func (s *ConsistencyScore) CorrectionPrompt() string {
	if strings.TrimSpace(s.FixPrompt) != "" {
		return s.FixPrompt
	}
	if len(s.Issues) == 0 {
		return ""
	}
	return fmt.Sprintf(
		"Fix ONLY these issues, keep everything else identical: %s",
		strings.Join(s.Issues, "; "),
	)
}
