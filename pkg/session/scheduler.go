package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-comic-studio/pkg/domain"

	"golang.org/x/time/rate"
)

// Stage は読書UIへの遷移シグナルです。
type Stage string

const (
	StageCoverReady  Stage = "cover_ready"  // 表紙が完成し、本を開ける状態
	StageReaderReady Stage = "reader_ready" // ゲートページまで揃い、読み始められる状態
)

// Summarizer は号のまとめ生成の契約です。決して失敗しない前提なのだ。
type Summarizer interface {
	Summarize(ctx context.Context, history []domain.HistoryEntry, issue int) string
}

// Scheduler はページ生成をバッチ単位で駆動します。
// バッチ内は厳密に昇順・逐次（後のページは直前までの確定済み履歴を
// 読む必要があるため）、バッチ同士は実行中ガードで保護された上で
// 並行に走ってよいのだ。
type Scheduler struct {
	sess       *Session
	orch       *Orchestrator
	layout     Layout
	limiter    *rate.Limiter // ページ間の固定ディレイ（上流のレート制限対策）
	summarizer Summarizer
	onStage    func(Stage) // UI遷移シグナル。nil 可
}

// NewScheduler は Scheduler の新しいインスタンスを生成して返すのだ。
func NewScheduler(sess *Session, orch *Orchestrator, layout Layout, pageInterval time.Duration, summarizer Summarizer, onStage func(Stage)) *Scheduler {
	return &Scheduler{
		sess:       sess,
		orch:       orch,
		layout:     layout,
		limiter:    rate.NewLimiter(rate.Every(pageInterval), 1),
		summarizer: summarizer,
		onStage:    onStage,
	}
}

// Launch は新しい号の立ち上げシーケンスを実行します:
// (1) 表紙を単独生成 → (2) UI遷移シグナル → (3) ゲートまでの初期バッチを
// 同期生成 → (4) 読書開始シグナル → (5) 次バッチをバックグラウンド継続。
// 前提条件の検証はどのモデル呼び出しよりも先に行われるのだ。
func (sc *Scheduler) Launch(ctx context.Context) error {
	if err := sc.validatePreconditions(); err != nil {
		return err
	}

	sc.sess.Feed().Add(fmt.Sprintf("第%d号の生成を開始します", sc.sess.Issue()))

	// 1. 表紙だけを先に仕上げるのだ
	sc.GenerateBatch(ctx, 0, 1)
	sc.signal(StageCoverReady)

	// 2. ゲートページを含む初期バッチを同期で待つのだ
	sc.GenerateBatch(ctx, 1, sc.layout.InitialPages)
	sc.signal(StageReaderReady)
	sc.sess.Feed().Add("読み始められます！続きは背後で生成中です")

	// 3. 続きは読書をブロックせずに背景で生成するのだ
	bgCtx := context.WithoutCancel(ctx)
	go sc.GenerateBatch(bgCtx, 1+sc.layout.InitialPages, sc.layout.BatchSize)

	return nil
}

// GenerateBatch は start から count ページ分を厳密な昇順で逐次生成します。
// 実行中ガードに登録済みのページ番号はスキップされるのだ。
func (sc *Scheduler) GenerateBatch(ctx context.Context, start, count int) {
	for index := start; index < start+count; index++ {
		if index < 0 || index > sc.layout.MaxPageIndex {
			continue // 固定レイアウトの範囲外は生成しない
		}
		if !sc.sess.MarkInflight(index) {
			slog.Info("生成中のページをスキップするのだ", "page", index)
			continue
		}

		if err := sc.limiter.Wait(ctx); err != nil {
			sc.sess.ClearInflight(index)
			slog.Warn("ページ間ディレイの待機が中断されました", "page", index, "error", err)
			return
		}

		sc.orch.GeneratePage(ctx, index)
		sc.sess.ClearInflight(index)
	}
}

// ResolveChoice は選択ページの解決を記録し、続きのバッチを
// ブロックせずに起動します。固定の総ページ上限を超える分は
// スケジュールしないのだ。
func (sc *Scheduler) ResolveChoice(ctx context.Context, pageID, choice string) {
	sc.sess.RecordChoice(pageID, choice)
	sc.sess.Feed().Add(fmt.Sprintf("選択を記録しました: %s", choice))

	next := sc.sess.MaxKnownIndex() + 1
	if next > sc.layout.MaxPageIndex {
		return
	}
	bgCtx := context.WithoutCancel(ctx)
	go sc.GenerateBatch(bgCtx, next, sc.layout.BatchSize)
}

// NextIssue は号の切り替えを実行するのだ:
// 終わった号を要約 → あらすじへ追記 → 号数を進めてページ集合と
// ガードを破棄 → 立ち上げシーケンスを再実行。
func (sc *Scheduler) NextIssue(ctx context.Context, finale bool) error {
	finished := sc.sess.Issue()
	sc.sess.Feed().Add(fmt.Sprintf("第%d号を締めくくっています...", finished))

	recap := sc.summarizer.Summarize(ctx, sc.sess.History(), finished)
	sc.sess.ResetForNextIssue(recap)
	sc.sess.SetFinale(finale)

	return sc.Launch(ctx)
}

// validatePreconditions は起動前の不変条件を検証します。
// ここで弾かれた場合、ネットワーク呼び出しは一度も行われないのだ。
func (sc *Scheduler) validatePreconditions() error {
	settings := sc.sess.Settings()

	if !sc.sess.Hero().HasImage() {
		return fmt.Errorf("主人公の参照画像が必要です。アップロードしてから起動してほしいのだ")
	}
	if settings.Genre == domain.GenreCustom && settings.Premise == "" {
		return fmt.Errorf("カスタムジャンルにはあらすじ（premise）の入力が必要なのだ")
	}
	return nil
}

func (sc *Scheduler) signal(stage Stage) {
	if sc.onStage != nil {
		sc.onStage(stage)
	}
}
