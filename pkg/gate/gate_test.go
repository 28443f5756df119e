package gate

import (
	"context"
	"errors"
	"testing"
)

// scriptedJudge は呼ばれた順にあらかじめ決めた応答を返すのだ。
type scriptedJudge struct {
	responses []string
	err       error
	calls     int
}

func (j *scriptedJudge) Judge(_ context.Context, _ string, _ []Image) (string, error) {
	if j.err != nil {
		return "", j.err
	}
	resp := j.responses[j.calls%len(j.responses)]
	j.calls++
	return resp, nil
}

func TestGate_Evaluate(t *testing.T) {
	t.Run("フェンス付きJSONの応答を解釈できるのだ", func(t *testing.T) {
		judge := &scriptedJudge{responses: []string{
			"Here is my evaluation:\n```json\n{\"overall_score\": 0.85, \"per_character\": {\"ミカ\": 0.9}, \"issues\": []}\n```",
		}}
		score, err := New(judge).Evaluate(context.Background(), "instruction", nil)
		if err != nil {
			t.Fatalf("評価に失敗したのだ: %v", err)
		}
		if score.OverallScore != 0.85 || score.PerCharacter["ミカ"] != 0.9 {
			t.Errorf("スコアが正しく読めていないのだ: %+v", score)
		}
	})

	t.Run("フェンスなしでも最外のJSONオブジェクトを拾うのだ", func(t *testing.T) {
		judge := &scriptedJudge{responses: []string{
			`The result: {"overall_score": 0.7, "issues": ["hair color mismatch"], "fix_prompt": "make the hair silver"} done.`,
		}}
		score, err := New(judge).Evaluate(context.Background(), "instruction", nil)
		if err != nil {
			t.Fatalf("評価に失敗したのだ: %v", err)
		}
		if score.FixPrompt != "make the hair silver" {
			t.Errorf("修正指示が読めていないのだ: %+v", score)
		}
	})

	t.Run("壊れた応答は同じ入力で2回までやり直すのだ", func(t *testing.T) {
		judge := &scriptedJudge{responses: []string{
			"I cannot evaluate this.",
			"still no json",
			`{"overall_score": 0.66}`,
		}}
		score, err := New(judge).Evaluate(context.Background(), "instruction", nil)
		if err != nil {
			t.Fatalf("再審査で回復できなかったのだ: %v", err)
		}
		if judge.calls != 3 {
			t.Errorf("呼び出し回数が違うのだ: %d", judge.calls)
		}
		if score.OverallScore != 0.66 {
			t.Errorf("回復後のスコアが違うのだ: %+v", score)
		}
	})

	t.Run("やり直しても壊れていたらErrMalformedJudgmentなのだ", func(t *testing.T) {
		judge := &scriptedJudge{responses: []string{"no json here"}}
		_, err := New(judge).Evaluate(context.Background(), "instruction", nil)
		if !errors.Is(err, ErrMalformedJudgment) {
			t.Errorf("解釈不能エラーになっていないのだ: %v", err)
		}
		if judge.calls != 3 {
			t.Errorf("初回+2回の再審査になっていないのだ: %d", judge.calls)
		}
	})

	t.Run("範囲外スコアはゼロに丸めず解釈不能として扱うのだ", func(t *testing.T) {
		judge := &scriptedJudge{responses: []string{`{"overall_score": 7.5}`}}
		_, err := New(judge).Evaluate(context.Background(), "instruction", nil)
		if !errors.Is(err, ErrMalformedJudgment) {
			t.Errorf("範囲外スコアが通ってしまったのだ: %v", err)
		}
	})

	t.Run("通信エラーは再試行せず即座に伝播するのだ", func(t *testing.T) {
		transport := errors.New("connection reset")
		judge := &scriptedJudge{err: transport}
		_, err := New(judge).Evaluate(context.Background(), "instruction", nil)
		if !errors.Is(err, transport) {
			t.Errorf("通信エラーが伝播していないのだ: %v", err)
		}
		if errors.Is(err, ErrMalformedJudgment) {
			t.Error("通信エラーが解釈不能扱いになってしまったのだ")
		}
	})
}
