package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-comic-studio/pkg/domain"
)

// BeatTemplateData はビート生成プロンプトの材料一式です。
type BeatTemplateData struct {
	History     []domain.HistoryEntry
	PageNumber  int  // 1始まり。最大値は固定レイアウトで決まる
	MaxPage     int  // 本編の最終ページ番号
	IsDecision  bool // 選択ページかどうか
	Settings    domain.Settings
	Issue       int    // 現在の号数
	Finale      bool   // 最終号フラグ
	Summary     string // 前号までのあらすじ（号をまたぐ連続性）
	HeroName    string
	CoStarName  string // 相棒ペルソナが未登場なら空
	ForceCoStar bool   // 確率バイアスにより相棒フォーカスを強制する
}

// BeatPromptBuilder は物語ビート生成用の構造化ディレクティブを組み立てます。
type BeatPromptBuilder struct{}

// NewBeatPromptBuilder は新しい BeatPromptBuilder を生成します。
func NewBeatPromptBuilder() *BeatPromptBuilder {
	return &BeatPromptBuilder{}
}

// Build は履歴・設定・ページ位置から1本のプロンプト文字列を構築するのだ。
func (pb *BeatPromptBuilder) Build(data BeatTemplateData) string {
	var sb strings.Builder

	sb.WriteString("You are writing one page of a serialized comic book.\n\n")

	// --- 設定セクション ---
	genre := data.Settings.Genre
	if genre == domain.GenreCustom {
		sb.WriteString(fmt.Sprintf("### PREMISE ###\n%s\n\n", data.Settings.Premise))
	} else {
		sb.WriteString(fmt.Sprintf("### GENRE ###\n%s\n\n", genre))
	}
	sb.WriteString(fmt.Sprintf("- TONE: %s\n", data.Settings.Tone))
	sb.WriteString(fmt.Sprintf("- NARRATIVE LANGUAGE: %s (caption, dialogue and choices MUST be in this language)\n", data.Settings.Language))
	sb.WriteString(fmt.Sprintf("- ISSUE: %d\n", data.Issue))
	if data.Summary != "" {
		sb.WriteString(fmt.Sprintf("\n### PREVIOUSLY ###\n%s\n", data.Summary))
	}

	// --- ジャンル由来のネガティブ制約 ---
	if neg := genreConstraints(genre); neg != "" {
		sb.WriteString("\n### CONSTRAINTS ###\n")
		sb.WriteString(neg)
		sb.WriteString("\n")
	}

	// --- 語数上限（リッチ設定に依存） ---
	capWords, dlgWords := WordCeilings(data.Settings.Rich)
	sb.WriteString(fmt.Sprintf("\n- Caption: at most %d words. Dialogue: at most %d words.\n", capWords, dlgWords))

	// --- ページ位置に応じた物語ステージ指示 ---
	sb.WriteString("\n### THIS PAGE ###\n")
	sb.WriteString(fmt.Sprintf("Page %d of %d. ", data.PageNumber, data.MaxPage))
	sb.WriteString(StageInstruction(data.PageNumber, data.IsDecision, data.PageNumber >= data.MaxPage))
	sb.WriteString("\n")

	// --- 最終号 or 続き物の締め方 ---
	if data.PageNumber >= data.MaxPage {
		if data.Finale {
			sb.WriteString("This is the final issue: bring the whole serialized story to a satisfying, definitive close.\n")
		} else {
			sb.WriteString("End the issue on a cliffhanger that makes the reader crave the next issue.\n")
		}
	}

	// --- フォーカスキャラクター ---
	sb.WriteString(fmt.Sprintf("\nThe hero is %s.", heroLabel(data.HeroName)))
	if data.CoStarName != "" {
		sb.WriteString(fmt.Sprintf(" The co-star is %s.", data.CoStarName))
	}
	if data.ForceCoStar && data.CoStarName != "" {
		sb.WriteString(fmt.Sprintf("\nThis page MUST focus on the co-star %s: set focus_char to \"friend\".", data.CoStarName))
	}
	sb.WriteString("\n")

	// --- 履歴 ---
	if len(data.History) > 0 {
		sb.WriteString("\n### STORY SO FAR (this issue) ###\n")
		for _, h := range data.History {
			sb.WriteString(fmt.Sprintf("Page %d: %s", h.Page, h.Beat.Caption))
			if h.Beat.Dialogue != "" {
				sb.WriteString(fmt.Sprintf(" / %q", h.Beat.Dialogue))
			}
			if h.Choice != "" {
				sb.WriteString(fmt.Sprintf(" [reader chose: %s]", h.Choice))
			}
			sb.WriteString("\n")
		}
	}

	// --- 応答フォーマット ---
	sb.WriteString("\n### OUTPUT ###\n")
	sb.WriteString("Respond with a single JSON object, no markdown fences:\n")
	sb.WriteString(`{"caption": "...", "dialogue": "...", "scene": "...", "focus_char": "hero|friend|other", "choices": []}` + "\n")
	sb.WriteString(SceneLanguageMandate)
	sb.WriteString("\n")
	if data.IsDecision {
		sb.WriteString("This is a decision page: \"choices\" MUST contain 2 or 3 short options for the reader.\n")
	} else {
		sb.WriteString("\"choices\" MUST be an empty array on this page.\n")
	}

	return sb.String()
}

// StageInstruction はページ番号の固定分割 {導入, 上昇(2-4), 紛糾(5-8), 山場(9+)}
// に応じた指示を返します。選択ページと最終ページの指示はこれを上書きするのだ。
func StageInstruction(page int, isDecision, isFinal bool) string {
	switch {
	case isFinal:
		return "This is the closing page of the issue: resolve the immediate scene."
	case isDecision:
		return "Build to a dramatic branching moment where the reader must choose what happens next."
	case page <= 1:
		return "Opening: establish the hero, the setting and the hook of this issue."
	case page <= 4:
		return "Rising action: escalate the situation introduced in the opening."
	case page <= 8:
		return "Complication: introduce an obstacle or reversal that raises the stakes."
	default:
		return "Climax: drive the conflict toward its most intense point."
	}
}

// WordCeilings はリッチ設定に応じたキャプション/セリフの語数上限を返します。
func WordCeilings(rich bool) (caption int, dialogue int) {
	if rich {
		return 45, 30
	}
	return 25, 15
}

// genreConstraints はジャンルごとの固定ネガティブ制約を返すのだ。
// 該当がなければ空文字列を返します。
func genreConstraints(genre string) string {
	switch strings.ToLower(genre) {
	case "teen drama":
		return "- Keep the stakes emotional and social, never mortal. No weapons, no life-threatening danger."
	case "fantasy":
		return "" // ファンタジー語彙はこのジャンルでは解禁なのだ
	case "sci-fi", "science fiction":
		return "- Keep technology self-consistent. No magic or supernatural vocabulary."
	default:
		return "- Avoid fantasy vocabulary (spells, dragons, wizards) unless the premise itself introduces it."
	}
}

func heroLabel(name string) string {
	if name == "" {
		return "the hero"
	}
	return name
}
