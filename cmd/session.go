package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-comic-studio/internal/builder"
	"github.com/shouni/go-comic-studio/internal/config"
	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/publisher"
	"github.com/shouni/go-comic-studio/pkg/session"

	"github.com/spf13/cobra"
)

// pollInterval は進行状況を確認する間隔です。
const pollInterval = 500 * time.Millisecond

// sessionCmd は、連載コミックの生成セッションを最初から最後まで駆動するのだ。
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "連載コミックの生成セッションを実行しますなのだ。",
	Long: `参照画像とジャンル設定から号単位のコミックを生成するのだ。
選択ページでは読者の選択を受け取り（--auto で自動選択）、
号が完成するたびに画像とダイジェストを保存するのだよ。`,
	RunE: sessionCommand,
}

func sessionCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.HeroImage == "" {
		return fmt.Errorf("主人公の参照画像（--hero-image）を指定してほしいのだ")
	}
	if opts.Issues < 1 {
		return fmt.Errorf("--issues は 1 以上を指定してほしいのだ")
	}

	// 1. 環境変数とフラグから設定を組み立てるのだ
	cfg := config.LoadConfig()
	if opts.TextModel != "" {
		cfg.TextModel = opts.TextModel
	}
	if opts.ImageModel != "" {
		cfg.ImageModel = opts.ImageModel
	}

	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	settings, err := resolveSettings(ctx, appCtx)
	if err != nil {
		return err
	}

	hero, friend, err := loadPersonas(ctx, appCtx)
	if err != nil {
		return err
	}

	slog.Info("コミック生成セッションを起動するのだ！",
		"genre", settings.Genre,
		"language", settings.Language,
		"issues", opts.Issues,
		"text_model", cfg.TextModel,
		"image_model", cfg.ImageModel)

	sess := session.NewSession(settings, hero, friend, config.DefaultLogSize, func() {
		slog.Error("APIキーが拒否されました。GEMINI_API_KEY を確認して再実行してほしいのだ")
	})
	sess.SetFinale(opts.Finale && opts.Issues == 1)

	sc := builder.BuildScheduler(appCtx, sess, func(stage session.Stage) {
		slog.Info("読書ステージが進んだのだ", "stage", string(stage))
	})

	// 2. 号ごとに 起動 → 読み進め → 保存 を繰り返すのだ
	pub := builder.BuildPublisher(appCtx)
	for issue := 1; issue <= opts.Issues; issue++ {
		if issue == 1 {
			err = sc.Launch(ctx)
		} else {
			err = sc.NextIssue(ctx, opts.Finale && issue == opts.Issues)
		}
		if err != nil {
			return fmt.Errorf("第%d号の起動に失敗したのだ: %w", issue, err)
		}

		if err := driveIssue(ctx, sess, sc); err != nil {
			return err
		}

		result, err := pub.Publish(ctx, sess.Pages(), settings, sess.Issue(), publisher.Options{OutputDir: opts.OutputDir})
		if err != nil {
			return fmt.Errorf("第%d号の保存に失敗したのだ: %w", sess.Issue(), err)
		}
		slog.Info("号の保存が完了したのだ！", "issue", sess.Issue(), "digest", result.MarkdownPath, "images", len(result.ImagePaths))
	}

	slog.Info("すべての号が完成したのだ！")
	return nil
}

// driveIssue は号が裏表紙まで完成するまで進行を駆動します。
// 全ページ確定のたびに、未解決の選択があれば解決し、無ければ
// 次のバッチを読者の「ページめくり」として起動するのだ。
func driveIssue(ctx context.Context, sess *session.Session, sc *session.Scheduler) error {
	layout := session.DefaultLayout()
	feedCursor := 0

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		feedCursor = drainFeed(sess, feedCursor)

		if sess.InflightCount() > 0 {
			continue
		}
		pages := sess.Pages()
		if anyLoading(pages) {
			continue
		}

		if decision := pendingDecision(pages); decision != nil {
			choice := pickChoice(decision)
			slog.Info("選択を解決するのだ", "page", decision.Index, "choice", choice)
			sc.ResolveChoice(ctx, decision.ID, choice)
			continue
		}

		maxKnown := sess.MaxKnownIndex()
		if maxKnown >= layout.MaxPageIndex {
			drainFeed(sess, feedCursor)
			return nil // 裏表紙まで揃ったのだ
		}

		// 選択待ちでないなら、続きのバッチを読者のページめくりとして起動する。
		// 実行中ガードがあるので多重起動しても二重生成にはならないのだ。
		go sc.GenerateBatch(ctx, maxKnown+1, layout.BatchSize)
	}
}

// pendingDecision は未解決の選択ページがあれば返します。
func pendingDecision(pages []*domain.Page) *domain.Page {
	for _, p := range pages {
		if p.IsDecision && p.Choice == "" && p.Beat != nil && len(p.Beat.Choices) > 0 {
			return p
		}
	}
	return nil
}

// pickChoice は選択肢を決定します。--auto なら先頭、そうでなければ
// 標準入力から読者に選んでもらうのだ。
func pickChoice(page *domain.Page) string {
	choices := page.Beat.Choices
	if opts.AutoChoice {
		return choices[0]
	}

	fmt.Printf("\n--- ページ %d: %s ---\n", page.Index, page.Beat.Caption)
	for i, c := range choices {
		fmt.Printf("  [%d] %s\n", i+1, c)
	}
	fmt.Print("どうする？ 番号を入力してほしいのだ > ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return choices[0]
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(choices) {
		slog.Warn("入力を解釈できなかったので最初の選択肢で進めるのだ")
		return choices[0]
	}
	return choices[n-1]
}

func anyLoading(pages []*domain.Page) bool {
	for _, p := range pages {
		if p.IsLoading {
			return true
		}
	}
	return false
}

// drainFeed はセッションのログフィードの新着分を標準ログへ流し、
// 読み取り済み位置（累計件数ベース）を返します。
func drainFeed(sess *session.Session, cursor int) int {
	entries := sess.Feed().Entries()
	total := sess.Feed().Total()

	newCount := total - cursor
	if newCount > len(entries) {
		newCount = len(entries) // 上限超過で破棄された分は諦めるのだ
	}
	for _, e := range entries[len(entries)-newCount:] {
		slog.Info(e.Message)
	}
	return total
}
