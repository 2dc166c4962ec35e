package prompts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shouni/go-comic-studio/pkg/domain"
)

// violentActionRegex は暴力的なアクション語彙のパターンなのだ。
// ラダーのレベル2以降で中立語に置換します。
var violentActionRegex = regexp.MustCompile(`(?i)\b(kill(?:ing|s|ed)?|murder(?:ing|s|ed)?|stab(?:bing|s|bed)?|shoot(?:ing|s)?|shot|gun(?:s)?|knife|knives|blade(?:s)?|blood(?:y)?|slaughter(?:ing|s|ed)?|behead(?:ing|s|ed)?|strangl(?:e|ing|es|ed)|execut(?:e|ing|es|ed)|corpse(?:s)?)\b`)

// ScrubViolentVocabulary は scene テキスト中の暴力語彙を中立的な語に置換します。
func ScrubViolentVocabulary(scene string) string {
	return violentActionRegex.ReplaceAllString(scene, NeutralActionTerm)
}

// ImageTemplateData はイラスト生成プロンプトの材料一式です。
type ImageTemplateData struct {
	Beat       domain.Beat
	PageType   domain.PageType
	PageNumber int
	Settings   domain.Settings
	Issue      int
	Finale     bool
	// PersonaDescriptions は参照画像を落とした最終レベルで使う
	// テキストのみのキャラクター記述です。
	PersonaDescriptions []string
}

// ImagePromptBuilder は安全性フォールバックラダーの各レベルに応じた
// 画像生成プロンプトを構築します。レベルは 0（原文どおり）から
// 3（参照画像なしの最終手段）まで厳密に一方向へ強まるのだ。
type ImagePromptBuilder struct{}

// NewImagePromptBuilder は新しい ImagePromptBuilder を生成します。
func NewImagePromptBuilder() *ImagePromptBuilder {
	return &ImagePromptBuilder{}
}

// Build は指定レベルのプロンプトと、参照画像を含めるべきかどうかを返します。
func (pb *ImagePromptBuilder) Build(data ImageTemplateData, level int) (prompt string, includeRefs bool) {
	scene := data.Beat.Scene
	if level >= 2 {
		scene = ScrubViolentVocabulary(scene)
	}

	var sb strings.Builder
	sb.WriteString(ComicSystemInstruction)
	sb.WriteString("\n\n")

	switch data.PageType {
	case domain.PageTypeCover:
		sb.WriteString(fmt.Sprintf("Comic book cover for issue #%d, genre: %s. Title composition, heroic pose, striking background.\n", data.Issue, genreOrPremiseLabel(data.Settings)))
	case domain.PageTypeBackCover:
		if data.Finale {
			sb.WriteString("Back cover of the final issue: a warm farewell scene, the story complete.\n")
		} else {
			sb.WriteString("Back cover teasing the next issue: moody, mysterious composition.\n")
		}
	default:
		sb.WriteString(fmt.Sprintf("Scene (page %d): %s\n", data.PageNumber, scene))
	}

	sb.WriteString("\n")
	sb.WriteString(RenderingStyle)
	sb.WriteString("\n")

	// レベルごとの強まるフィクション化指示なのだ
	switch {
	case level >= 2:
		sb.WriteString("\n" + StrongFictionQualifier + "\n")
	case level >= 1:
		sb.WriteString("\n" + FictionQualifier + "\n")
	}

	includeRefs = level < 3
	if includeRefs {
		sb.WriteString("\n")
		sb.WriteString(fidelityInstruction(data.Settings.FidelityLevel(), level))
		sb.WriteString("\n")
	} else if len(data.PersonaDescriptions) > 0 {
		// 最終手段: 参照画像を捨ててテキスト記述だけで描かせるのだ
		sb.WriteString("\n### CHARACTERS (text description only) ###\n")
		for _, d := range data.PersonaDescriptions {
			sb.WriteString("- " + d + "\n")
		}
	}

	return sb.String(), includeRefs
}

// fidelityInstruction はユーザーの忠実度設定とラダーのレベルに応じた
// 参照画像の扱いを文章化します。
func fidelityInstruction(fidelity, level int) string {
	var base string
	switch fidelity {
	case 3:
		base = "Match the attached reference images as closely as possible: same face, hair, outfit and proportions."
	case 2:
		base = "Keep the characters clearly recognizable from the attached reference images, while adapting them to the comic art style."
	default:
		base = "Use the attached reference images as loose inspiration for the characters."
	}
	if level >= 2 {
		base += " Render them as fully stylized cartoon characters, not realistic likenesses."
	}
	return base
}

func genreOrPremiseLabel(s domain.Settings) string {
	if s.Genre == domain.GenreCustom {
		return s.Premise
	}
	return s.Genre
}
