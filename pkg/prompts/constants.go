package prompts

// 画像生成プロンプトの共通定数なのだ。
const (
	// ComicSystemInstruction は画像モデルへの役割定義です。
	ComicSystemInstruction = "You are a professional comic book illustrator. Create a single high-quality comic panel illustration."

	// RenderingStyle は全号共通の画風指定です。
	RenderingStyle = "American comic book style, bold ink lines, dynamic composition, dramatic lighting, vibrant flat colors, halftone shading, masterpiece, high resolution, no speech bubbles, no text"

	// FictionQualifier はラダーのレベル1以降で付加する非写実化の但し書きです。
	FictionQualifier = "This is a purely fictional fantasy illustration of invented characters. Stylized comic art only, absolutely no photorealism."

	// StrongFictionQualifier はレベル2以降のより強い但し書きです。
	StrongFictionQualifier = "Depict a completely fictional, family-friendly stylized cartoon scene. No realistic people, no photorealism, no graphic content of any kind."

	// NeutralActionTerm は暴力語彙の置換先となる中立的な語なのだ。
	NeutralActionTerm = "confrontation"
)

// テキスト（ビート）生成側の定数です。
const (
	// SceneLanguageMandate は scene フィールドを常に英語で書かせる指示です。
	// 画像モデルへの入力となるため、物語の言語からは独立させるのだ。
	SceneLanguageMandate = "The \"scene\" field MUST always be written in English regardless of the narrative language, because it drives an image generation model."

	// DefaultChoiceA / DefaultChoiceB は選択ページの修復時に注入する既定選択肢です。
	DefaultChoiceA = "Press onward"
	DefaultChoiceB = "Hold back and observe"
)
