package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// シーン尺の許容範囲（秒）です。生成側の契約に合わせた固定値なのだ。
const (
	MinSceneDuration = 3
	MaxSceneDuration = 15
)

// Character は物語に登場するキャラクターの定義を保持します。
// VisualDescription は外見の唯一の正として扱われ、構想確定後は一切書き換えません。
// すべての生成プロンプトへ逐語的にコピーされることで、外見のブレを防ぎます。
type Character struct {
	Name              string   `json:"name"`
	Role              string   `json:"role"`
	VisualDescription string   `json:"visual_description"`
	PersonalityCues   []string `json:"personality_cues"`
}

// String はキャラクターの情報を文字列で返すのだ。
func (c Character) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Role)
}

// Scene は1カットの演出指定を保持します。SceneID が処理順序を定義します。
// 構想確定後に変更してよいのは DurationSeconds の下方クランプのみです。
type Scene struct {
	SceneID           int      `json:"scene_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	CharactersPresent []string `json:"characters_present"`
	Setting           string   `json:"setting"`
	Camera            string   `json:"camera"`
	Mood              string   `json:"mood"`
	Action            string   `json:"action"`
	DurationSeconds   int      `json:"duration_seconds"`
	Transition        string   `json:"transition"`
}

// StoryPlan は1回の実行における創作上の固定契約です。
// Style と各キャラクターの VisualDescription は構想（ideation）完了を境に凍結され、
// 以後のプロンプトには常に同じ文字列が使われます。
type StoryPlan struct {
	Title        string      `json:"title"`
	Style        string      `json:"style"`
	AspectRatio  string      `json:"aspect_ratio"`
	ColorPalette string      `json:"color_palette"`
	Characters   []Character `json:"characters"`
	Scenes       []Scene     `json:"scenes"`
}

// CharactersByName は名前をキーとした検索用マップを構築するのだ。
func (p *StoryPlan) CharactersByName() map[string]Character {
	m := make(map[string]Character, len(p.Characters))
	for _, c := range p.Characters {
		m[c.Name] = c
	}
	return m
}

// Validate は計画のスキーマ的な健全性を確認します。
// 構造上の欠陥（スタイル未指定、尺の範囲外、名前の重複、シーンなし）はエラーです。
// シーンが存在しないキャラクター名を参照しているケースはここではエラーにしません。
// それは構想段階のデータ欠陥として後段（参照割当）で劣化運転されるためです。
func (p *StoryPlan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("計画の title が空です")
	}
	if strings.TrimSpace(p.Style) == "" {
		return fmt.Errorf("計画の style が空です: スタイルロックが成立しません")
	}
	if len(p.Scenes) == 0 {
		return fmt.Errorf("計画にシーンが1つもありません")
	}

	seen := make(map[string]struct{}, len(p.Characters))
	for _, c := range p.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("名前が空のキャラクターが含まれています")
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("キャラクター名が重複しています: %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if strings.TrimSpace(c.VisualDescription) == "" {
			return fmt.Errorf("キャラクター %q の visual_description が空です", c.Name)
		}
	}

	for _, s := range p.Scenes {
		if s.DurationSeconds < MinSceneDuration || s.DurationSeconds > MaxSceneDuration {
			return fmt.Errorf("シーン %d の尺 %d 秒は許容範囲 [%d, %d] の外です",
				s.SceneID, s.DurationSeconds, MinSceneDuration, MaxSceneDuration)
		}
	}
	return nil
}

// UnknownCharacterRefs は、シーンが参照しているのに計画に存在しないキャラクター名を
// シーン順で返します。ハードエラーではなく、呼び出し側でログと劣化運転に使います。
func (p *StoryPlan) UnknownCharacterRefs() map[int][]string {
	known := p.CharactersByName()
	missing := make(map[int][]string)
	for _, s := range p.Scenes {
		for _, name := range s.CharactersPresent {
			if _, ok := known[name]; !ok {
				missing[s.SceneID] = append(missing[s.SceneID], name)
			}
		}
	}
	return missing
}

// ClampDurations はシーン尺を maxDuration まで下方クランプし、
// 変更したシーンIDのリストを返します。尺を引き上げることは決してありません。
func (p *StoryPlan) ClampDurations(maxDuration int) []int {
	var clamped []int
	for i := range p.Scenes {
		if p.Scenes[i].DurationSeconds > maxDuration {
			p.Scenes[i].DurationSeconds = maxDuration
			clamped = append(clamped, p.Scenes[i].SceneID)
		}
	}
	return clamped
}

// LoadStoryPlan は指定されたファイルパスからJSONを読み込み、検証済みの計画を返すのだ。
func LoadStoryPlan(path string) (*StoryPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("計画ファイルの読み込みに失敗したのだ: %w", err)
	}
	return ParseStoryPlan(data)
}

// ParseStoryPlan はJSONバイト列から計画をパースし、Validate まで済ませて返します。
func ParseStoryPlan(data []byte) (*StoryPlan, error) {
	var plan StoryPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("計画JSONのデコードに失敗しました: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}
