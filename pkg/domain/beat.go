package domain

import "strings"

// FocusChar はビートの主役となるキャラクターの区分です。
type FocusChar string

const (
	FocusHero   FocusChar = "hero"
	FocusFriend FocusChar = "friend"
	FocusOther  FocusChar = "other"
)

// NormalizeFocus は AI の応答に含まれる focus_char を許可された列挙値に丸めるのだ。
// 不明な値はすべて FocusHero に倒します。
func NormalizeFocus(raw string) FocusChar {
	switch FocusChar(strings.ToLower(strings.TrimSpace(raw))) {
	case FocusFriend:
		return FocusFriend
	case FocusOther:
		return FocusOther
	default:
		return FocusHero
	}
}

// Beat は1ページ分の物語ユニットです。
// Scene は物語の言語に関係なく常に英語で保持します（画像モデルへの入力のため）。
// Page に取り付けられた後は不変として扱うのだ。
type Beat struct {
	Caption   string    `json:"caption"`
	Dialogue  string    `json:"dialogue"`
	Scene     string    `json:"scene"`
	FocusChar FocusChar `json:"focus_char"`
	Choices   []string  `json:"choices"`
}

// IsDecision は選択肢を持つビートかどうかを返します。
func (b *Beat) IsDecision() bool {
	return b != nil && len(b.Choices) > 0
}

// HistoryEntry は履歴ビューの1要素です。ページ番号昇順で並びます。
// Choice は選択ページで読者が解決した選択肢（未解決なら空）なのだ。
type HistoryEntry struct {
	Page   int
	Beat   Beat
	Choice string
}
