package prompts

const (
	// CinematicTags クオリティ向上のための共通タグ
	CinematicTags = "cinematic composition, high resolution, sharp focus, film still"

	// CinemaNegativePrompt Negative Prompt の定義
	CinemaNegativePrompt = "text, caption, subtitles, watermark, username, logo, split screen, collage, low quality, distorted, bad anatomy, extra limbs"

	// PortraitStructureHeader はポートレート作画の構図を固定します。
	// 全身・中立ポーズ・無地背景に揃えることで、後段の参照画像として使い回せるのだ。
	PortraitStructureHeader = `### MANDATORY FORMAT: CHARACTER REFERENCE SHEET ###
- FRAMING: Full body, head to toe fully visible.
- POSE: Neutral three-quarter standing pose, arms relaxed.
- BACKGROUND: Plain light gray studio background. Nothing else in frame.`

	// SceneStructureHeader はシーンキーフレーム作画の全体構造を定義します。
	SceneStructureHeader = `### MANDATORY FORMAT: SINGLE CINEMATIC KEYFRAME ###
- STRUCTURE: One single frame from a film. NOT a collage, NOT a multi-panel layout.
- COMPOSITION: Follow the camera direction exactly.`
)
