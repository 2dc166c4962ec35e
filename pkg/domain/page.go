package domain

import "github.com/google/uuid"

// PageType はコミック紙面の種別です。
type PageType string

const (
	PageTypeCover     PageType = "cover"
	PageTypeStory     PageType = "story"
	PageTypeBackCover PageType = "back_cover"
)

// Page は出力シーケンスの単位となる1枚の紙面です。
// バッチがスケジュールされた時点で IsLoading=true の空の状態で作られ、
// ビート確定 → 画像確定の順にその場で更新されます。
// 号が切り替わるまで削除されることはないのだ。
type Page struct {
	ID         string   // 一意な識別子
	Index      int      // 0 = 表紙, 最大インデックス = 裏表紙, それ以外 = 本編
	Type       PageType // cover / story / back_cover
	Beat       *Beat    // 生成されるまで nil
	ImageURI   string   // data URI。失敗時はプレースホルダー画像が入る
	IsLoading  bool     // 生成中フラグ
	IsDecision bool     // 読者の選択を求めるページかどうか
	Choice     string   // 解決済みのユーザー選択（未解決なら空）
}

// NewPage は読み込み中状態の空ページを生成するのだ。
func NewPage(index int, pageType PageType, isDecision bool) *Page {
	return &Page{
		ID:         uuid.NewString(),
		Index:      index,
		Type:       pageType,
		IsLoading:  true,
		IsDecision: isDecision,
	}
}

// Clone はページのシャローでない複製を返します。
// セッション外部へスナップショットを渡すときに使うのだ。
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Beat != nil {
		beat := *p.Beat
		if p.Beat.Choices != nil {
			beat.Choices = make([]string, len(p.Beat.Choices))
			copy(beat.Choices, p.Beat.Choices)
		}
		cp.Beat = &beat
	}
	return &cp
}
