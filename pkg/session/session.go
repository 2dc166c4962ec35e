// Package session は連載コミック生成セッションの共有状態と、
// ページ単位のオーケストレーション、バッチ/号のスケジューリングを担います。
// 可変状態（ページ集合・履歴・実行中ガード）はすべてこのパッケージの
// コミット操作を通してのみ書き換えられるのだ。
package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/shouni/go-comic-studio/pkg/domain"
)

// Session は単一のアクティブな連載セッションの状態を保持します。
// 環境グローバルではなく、明示的に引き回されるコンテキストオブジェクトです。
// すべてのメソッドは並行呼び出しに対して安全なのだ。
type Session struct {
	mu sync.Mutex

	settings domain.Settings
	hero     *domain.Persona
	friend   *domain.Persona

	issue   int
	finale  bool
	summary string // 号をまたいで持ち越す累積あらすじ

	pages    map[int]*domain.Page // ページ番号 -> ページ（当該号のみ）
	inflight map[int]struct{}     // 生成中のページ番号の集合

	feed        *Feed
	onAuth      func() // 資格情報の再入力フローへの通知
	authLatched bool   // 通知は失敗ごとに一度だけ
}

// NewSession は新しいセッションを第1号の状態で生成するのだ。
func NewSession(settings domain.Settings, hero, friend *domain.Persona, feedLimit int, onAuth func()) *Session {
	return &Session{
		settings: settings,
		hero:     hero,
		friend:   friend,
		issue:    1,
		pages:    make(map[int]*domain.Page),
		inflight: make(map[int]struct{}),
		feed:     NewFeed(feedLimit),
		onAuth:   onAuth,
	}
}

// Settings はセッション設定を返します。生成中は読み取り専用です。
func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Issue は現在の号数を返します。
func (s *Session) Issue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue
}

// Finale は最終号フラグを返します。
func (s *Session) Finale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finale
}

// SetFinale は次号を最終号として扱うかどうかを設定するのだ。
func (s *Session) SetFinale(finale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finale = finale
}

// Summary は号をまたぐ累積あらすじを返します。
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Hero は主人公ペルソナを返します。
func (s *Session) Hero() *domain.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hero
}

// Friend は相棒ペルソナ（未登場なら nil）を返します。
func (s *Session) Friend() *domain.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friend
}

// SetFriend は相棒ペルソナを丸ごと差し替えます。部分更新はしないのだ。
func (s *Session) SetFriend(p *domain.Persona) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friend = p
}

// Feed はユーザー向けログフィードを返します。
func (s *Session) Feed() *Feed {
	return s.feed
}

// EnsurePage は指定番号のページを（無ければ読み込み中状態で作って）返します。
// 返り値は防御的コピーなのだ。
func (s *Session) EnsurePage(index int, pageType domain.PageType, isDecision bool) *domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[index]
	if !ok {
		page = domain.NewPage(index, pageType, isDecision)
		s.pages[index] = page
	}
	return page.Clone()
}

// Pages は当該号の全ページをページ番号昇順のコピーで返します。
func (s *Session) Pages() []*domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// CommitBeat はページIDを指定してビートを確定させます。
// 全置換ではなくIDによる read-modify-write なので、別ページへの
// 並行コミットと交錯しても更新が失われないのだ。
func (s *Session) CommitBeat(pageID string, beat domain.Beat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.findByID(pageID)
	if page == nil {
		slog.Warn("存在しないページへのビートコミットを無視するのだ", "page_id", pageID)
		return
	}
	if page.Beat != nil {
		// ビートは一度取り付けたら不変なのだ
		return
	}
	b := beat
	page.Beat = &b
}

// CommitImage は画像（実画像またはプレースホルダー）を確定させ、
// 読み込み中フラグを下ろします。すでに画像が確定しているページへの
// 遅延した到着（タイムアウト後に解決した呼び出し等）は無視するのだ。
func (s *Session) CommitImage(pageID, imageURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.findByID(pageID)
	if page == nil {
		slog.Warn("存在しないページへの画像コミットを無視するのだ", "page_id", pageID)
		return
	}
	if page.ImageURI != "" {
		return
	}
	page.ImageURI = imageURI
	page.IsLoading = false
}

// RecordChoice は選択ページの解決済み選択肢を記録します。
func (s *Session) RecordChoice(pageID, choice string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.findByID(pageID)
	if page == nil || !page.IsDecision {
		return
	}
	page.Choice = choice
}

// History は本編ページのうちビートが確定したものを、ページ番号昇順の
// 読み取り専用ビューとして返します。ビート生成器はこれを読むだけで、
// 決して書き換えないのだ。
func (s *Session) History() []domain.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.HistoryEntry
	for _, p := range s.pages {
		if p.Type != domain.PageTypeStory || p.Beat == nil {
			continue
		}
		entries = append(entries, domain.HistoryEntry{
			Page:   p.Index,
			Beat:   *p.Beat,
			Choice: p.Choice,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Page < entries[j].Page })
	return entries
}

// LastFocus は直近の確定ビートのフォーカスを返します。履歴が空なら hero です。
func (s *Session) LastFocus() domain.FocusChar {
	history := s.History()
	if len(history) == 0 {
		return domain.FocusHero
	}
	return history[len(history)-1].Beat.FocusChar
}

// MarkInflight はページ番号を実行中ガードに登録します。
// すでに登録済み（＝他のバッチが生成中）なら false を返すのだ。
func (s *Session) MarkInflight(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[index]; busy {
		return false
	}
	s.inflight[index] = struct{}{}
	return true
}

// ClearInflight はページ番号をガードから外します。
func (s *Session) ClearInflight(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, index)
}

// InflightCount は実行中ガードの登録件数を返します。
func (s *Session) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// MaxKnownIndex は既知の最大ページ番号を返します（ページ未生成なら -1）。
func (s *Session) MaxKnownIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxIdx := -1
	for idx := range s.pages {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	return maxIdx
}

// ResetForNextIssue は号の切り替えを行うのだ: あらすじに1段落を追記し、
// 号数を進め、ページ集合と実行中ガードを完全に破棄します。
// 持ち越すのは累積あらすじとペルソナだけです。
func (s *Session) ResetForNextIssue(recap string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if recap != "" {
		if s.summary != "" {
			s.summary += "\n\n"
		}
		s.summary += recap
	}
	s.issue++
	s.pages = make(map[int]*domain.Page)
	s.inflight = make(map[int]struct{})
	s.authLatched = false
}

// FullReset はあらすじも含めてセッションを初期状態へ戻します。
func (s *Session) FullReset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issue = 1
	s.finale = false
	s.summary = ""
	s.pages = make(map[int]*domain.Page)
	s.inflight = make(map[int]struct{})
	s.authLatched = false
}

// SignalAuth は資格情報の再入力フローを一度だけ起動します。
// どのコンポーネントが認証エラーを検知しても、通知は失敗ごとに
// 一度きりなのだ。再入力後は ResetAuthLatch で解除します。
func (s *Session) SignalAuth() {
	s.mu.Lock()
	latched := s.authLatched
	s.authLatched = true
	onAuth := s.onAuth
	s.mu.Unlock()

	if latched {
		return
	}
	s.feed.Add("APIキーに問題があります。資格情報を再入力してください")
	if onAuth != nil {
		onAuth()
	}
}

// ResetAuthLatch は資格情報の再入力後に通知ラッチを解除するのだ。
func (s *Session) ResetAuthLatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authLatched = false
}

// findByID は呼び出し元がロックを保持している前提の内部ヘルパーです。
func (s *Session) findByID(pageID string) *domain.Page {
	for _, p := range s.pages {
		if p.ID == pageID {
			return p
		}
	}
	return nil
}
