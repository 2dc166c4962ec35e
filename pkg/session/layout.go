package session

import (
	"github.com/shouni/go-comic-studio/internal/config"
	"github.com/shouni/go-comic-studio/pkg/domain"
)

// Layout はコミックの固定紙面レイアウトです。コアはこれを厳密に守るのだ。
type Layout struct {
	MaxPageIndex  int          // 裏表紙のインデックス。本編は 1〜MaxPageIndex-1
	InitialPages  int          // 初回に同期生成する本編ページ数
	GatePageIndex int          // 表紙の先へ進むために必須のページ
	BatchSize     int          // 2回目以降のバッチサイズ
	DecisionPages map[int]bool // 選択ページの番号集合
}

// DefaultLayout は既定の紙面レイアウトを返します。
func DefaultLayout() Layout {
	return Layout{
		MaxPageIndex:  config.MaxPageIndex,
		InitialPages:  config.InitialPages,
		GatePageIndex: config.GatePageIndex,
		BatchSize:     config.DefaultBatch,
		DecisionPages: config.DecisionPageIndices,
	}
}

// PageTypeOf はページ番号から紙面種別を決定するのだ。
func (l Layout) PageTypeOf(index int) domain.PageType {
	switch {
	case index == 0:
		return domain.PageTypeCover
	case index >= l.MaxPageIndex:
		return domain.PageTypeBackCover
	default:
		return domain.PageTypeStory
	}
}

// IsDecision はページ番号が選択ページかどうかを返します。
func (l Layout) IsDecision(index int) bool {
	return l.PageTypeOf(index) == domain.PageTypeStory && l.DecisionPages[index]
}

// LastStoryPage は本編の最終ページ番号です。
func (l Layout) LastStoryPage() int {
	return l.MaxPageIndex - 1
}
