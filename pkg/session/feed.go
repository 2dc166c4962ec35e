package session

import (
	"sync"
	"time"
)

// FeedEntry はユーザー向けログフィードの1件です。
type FeedEntry struct {
	At      time.Time
	Message string
}

// Feed は直近N件だけを保持するユーザー向けのログフィードなのだ。
// パイプラインの各段階の進行と失敗を、読者に見える言葉で実況します。
type Feed struct {
	mu      sync.Mutex
	limit   int
	total   int // 破棄分も含む累計件数。差分購読のカーソルに使うのだ
	entries []FeedEntry
}

// NewFeed は保持件数 limit のフィードを生成します。
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 1
	}
	return &Feed{limit: limit}
}

// Add はメッセージを追記し、上限を超えた古い項目を捨てるのだ。
func (f *Feed) Add(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.total++
	f.entries = append(f.entries, FeedEntry{At: time.Now(), Message: message})
	if len(f.entries) > f.limit {
		f.entries = f.entries[len(f.entries)-f.limit:]
	}
}

// Total は破棄された分も含む累計追記件数を返します。
func (f *Feed) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Entries は現在のフィード内容のコピーを返します。
func (f *Feed) Entries() []FeedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]FeedEntry, len(f.entries))
	copy(out, f.entries)
	return out
}
