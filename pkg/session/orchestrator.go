package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/envelope"
	"github.com/shouni/go-comic-studio/pkg/generator"
)

// BeatSource はビート生成の契約です。認証エラー以外は返さない前提なのだ。
type BeatSource interface {
	Generate(ctx context.Context, in generator.BeatInput) (domain.Beat, error)
}

// ImageSource はイラスト生成の契約です。返り値のURIは常に非空です。
type ImageSource interface {
	Render(ctx context.Context, in generator.RenderInput) (string, error)
}

// PersonaSource は相棒ペルソナの遅延合成の契約です。
type PersonaSource interface {
	Synthesize(ctx context.Context, name, description, genre string) (*domain.Persona, error)
}

// Orchestrator は1ページ分の生成シーケンスを駆動します。
// 状態遷移は Pending → BeatReady → ImageReady（または
// ImageFailed=プレースホルダー確定）で、どちらの終端も非エラーなのだ。
type Orchestrator struct {
	sess     *Session
	layout   Layout
	beats    BeatSource
	personas PersonaSource
	images   ImageSource
}

// NewOrchestrator は Orchestrator の新しいインスタンスを生成して返すのだ。
func NewOrchestrator(sess *Session, layout Layout, beats BeatSource, personas PersonaSource, images ImageSource) *Orchestrator {
	return &Orchestrator{
		sess:     sess,
		layout:   layout,
		beats:    beats,
		personas: personas,
		images:   images,
	}
}

// GeneratePage は指定ページを終端状態まで進めます。
// どの失敗も外へ伝播させず、ページは必ず画像（実物または
// プレースホルダー）を持って読み込み完了になるのだ。
func (o *Orchestrator) GeneratePage(ctx context.Context, index int) {
	pageType := o.layout.PageTypeOf(index)
	page := o.sess.EnsurePage(index, pageType, o.layout.IsDecision(index))

	// --- ビートの用意（表紙・裏表紙はモデルを呼ばない固定スタブ） ---
	beat, ok := o.resolveBeat(ctx, page)
	if !ok {
		return // 認証エラー: プレースホルダー確定済み
	}

	// --- 画像生成 ---
	uri, err := o.images.Render(ctx, generator.RenderInput{
		PageID:     page.ID,
		Beat:       beat,
		PageType:   pageType,
		PageNumber: index,
		Settings:   o.sess.Settings(),
		Issue:      o.sess.Issue(),
		Finale:     o.sess.Finale(),
		Personas:   o.referencePersonas(beat.FocusChar),
	})
	if envelope.IsAuth(err) {
		o.sess.SignalAuth()
	}
	o.sess.CommitImage(page.ID, uri)
	o.sess.Feed().Add(fmt.Sprintf("ページ %d が完成しました", index))
}

// resolveBeat はページのビートを確定させ、共有履歴へコミットします。
// 認証エラーで続行不能な場合のみ ok=false を返すのだ。
func (o *Orchestrator) resolveBeat(ctx context.Context, page *domain.Page) (domain.Beat, bool) {
	if page.Beat != nil {
		// 再開パス: ビート確定済みのページは画像だけやり直すのだ
		return *page.Beat, true
	}

	if page.Type != domain.PageTypeStory {
		beat := stubBeat(page.Type, o.sess.Issue())
		o.sess.CommitBeat(page.ID, beat)
		return beat, true
	}

	o.sess.Feed().Add(fmt.Sprintf("ページ %d の物語を考えています...", page.Index))

	settings := o.sess.Settings()
	friend := o.sess.Friend()
	coStarName := ""
	if friend != nil {
		coStarName = friend.Name
	}

	beat, err := o.beats.Generate(ctx, generator.BeatInput{
		History:    o.sess.History(),
		PageNumber: page.Index,
		MaxPage:    o.layout.LastStoryPage(),
		IsDecision: page.IsDecision,
		Settings:   settings,
		Issue:      o.sess.Issue(),
		Finale:     o.sess.Finale(),
		Summary:    o.sess.Summary(),
		HeroName:   heroName(o.sess.Hero()),
		CoStarName: coStarName,
		LastFocus:  o.sess.LastFocus(),
	})
	if err != nil {
		// ビート生成器が返すエラーは認証のみ
		o.sess.SignalAuth()
		o.sess.CommitImage(page.ID, generator.PlaceholderDataURI(generator.PlaceholderAuth))
		return domain.Beat{}, false
	}

	beat = o.backfillPersona(ctx, page, beat, settings.Genre)
	o.sess.CommitBeat(page.ID, beat)
	return beat, true
}

// backfillPersona は、相棒がフォーカスに選ばれたのに視覚的
// アイデンティティがまだ無い場合だけ、遅延的にペルソナを合成します。
// 失敗したらこのページのフォーカスを other に降格して続行するのだ（再試行なし）。
func (o *Orchestrator) backfillPersona(ctx context.Context, page *domain.Page, beat domain.Beat, genre string) domain.Beat {
	if beat.FocusChar != domain.FocusFriend || page.Type != domain.PageTypeStory {
		return beat
	}
	friend := o.sess.Friend()
	if friend.HasImage() {
		return beat
	}
	if friend == nil || friend.Description == "" {
		beat.FocusChar = domain.FocusOther
		return beat
	}

	o.sess.Feed().Add(fmt.Sprintf("%s の姿を描き起こしています...", friend.Name))
	persona, err := o.personas.Synthesize(ctx, friend.Name, friend.Description, genre)
	if err != nil {
		if envelope.IsAuth(err) {
			o.sess.SignalAuth()
		}
		slog.Warn("ペルソナ合成に失敗したためフォーカスを降格するのだ",
			"page", page.Index, "error", err)
		beat.FocusChar = domain.FocusOther
		return beat
	}
	o.sess.SetFriend(persona)
	return beat
}

// referencePersonas は画像生成に添付する参照ペルソナを集めます。
func (o *Orchestrator) referencePersonas(focus domain.FocusChar) []*domain.Persona {
	var refs []*domain.Persona
	if hero := o.sess.Hero(); hero.HasImage() {
		refs = append(refs, hero)
	}
	if focus == domain.FocusFriend {
		if friend := o.sess.Friend(); friend.HasImage() {
			refs = append(refs, friend)
		}
	}
	return refs
}

// stubBeat は表紙・裏表紙用の固定ビートです。モデルは呼ばないのだ。
func stubBeat(pageType domain.PageType, issue int) domain.Beat {
	if pageType == domain.PageTypeCover {
		return domain.Beat{
			Caption:   fmt.Sprintf("Issue #%d", issue),
			Scene:     "comic book cover composition",
			FocusChar: domain.FocusHero,
		}
	}
	return domain.Beat{
		Scene:     "comic book back cover composition",
		FocusChar: domain.FocusHero,
	}
}

func heroName(hero *domain.Persona) string {
	if hero == nil {
		return ""
	}
	return hero.Name
}
