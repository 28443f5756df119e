package domain

// CharacterAsset は確定済みのキャラクターポートレートです。
// 一度確定したら、以降のすべての参照画像として再利用されます。
type CharacterAsset struct {
	Name              string            `json:"name"`
	PortraitURL       string            `json:"portrait_url,omitempty"`
	PortraitPath      string            `json:"portrait_path"`
	VisualDescription string            `json:"visual_description"`
	Score             *ConsistencyScore `json:"score,omitempty"`
	// GenerationAttempts は採用までに消費した生成回数です（初回生成を含む）。
	GenerationAttempts int `json:"generation_attempts"`
}

// CharacterAssets はキャラクター名からアセットへの索引です。
type CharacterAssets map[string]*CharacterAsset

// KeyframeAsset はシーン1つ分の確定キーフレームです。
type KeyframeAsset struct {
	SceneID      int               `json:"scene_id"`
	KeyframeURL  string            `json:"keyframe_url,omitempty"`
	KeyframePath string            `json:"keyframe_path"`
	Score        *ConsistencyScore `json:"score,omitempty"`
	// GenerationAttempts は新規合成の回数、EditPasses は参照編集による修正の回数なのだ。
	GenerationAttempts int    `json:"generation_attempts"`
	EditPasses         int    `json:"edit_passes"`
	VideoPrompt        string `json:"video_prompt,omitempty"`
}

// VideoAsset はシーン1つ分の確定動画クリップです。
type VideoAsset struct {
	SceneID          int               `json:"scene_id"`
	VideoURL         string            `json:"video_url,omitempty"`
	VideoPath        string            `json:"video_path"`
	DurationSeconds  int               `json:"duration_seconds"`
	FirstFramePath   string            `json:"first_frame_path,omitempty"`
	LastFramePath    string            `json:"last_frame_path,omitempty"`
	Score            *ConsistencyScore `json:"score,omitempty"`
	CorrectionPasses int               `json:"correction_passes"`
}
