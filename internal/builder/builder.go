package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/go-comic-studio/internal/config"
	"github.com/shouni/go-comic-studio/internal/uploads"
	"github.com/shouni/go-comic-studio/pkg/generator"
	"github.com/shouni/go-comic-studio/pkg/publisher"
	"github.com/shouni/go-comic-studio/pkg/session"

	"github.com/shouni/go-web-exact/v2/pkg/extract"
)

// premiseLimit はWebから取り込むあらすじの最大文字数（rune）です。
// 長文記事を丸ごとプロンプトに入れないための上限なのだ。
const premiseLimit = 2000

// BuildScheduler は1セッション分の生成スタックを組み立てます:
// ビート生成器・ペルソナ合成器・イラスト生成器・号のまとめ生成器を
// オーケストレーターとスケジューラーに束ねるのだ。
func BuildScheduler(appCtx *AppContext, sess *session.Session, onStage func(session.Stage)) *session.Scheduler {
	cfg := appCtx.Config

	beats := generator.NewBeatGenerator(appCtx.Caller, cfg.TextModel, config.DefaultTextTimeout)
	personas := generator.NewPersonaSynthesizer(appCtx.Caller, cfg.ImageModel, config.DefaultImageTimeout)

	images := generator.NewImageRenderer(appCtx.Caller, cfg.ImageModel, config.DefaultImageTimeout)
	images.Notify = sess.Feed().Add

	summarizer := generator.NewIssueSummarizer(
		func(ctx context.Context, prompt, model string) (string, error) {
			resp, err := appCtx.TextClient.GenerateContent(ctx, prompt, model)
			if err != nil {
				return "", err
			}
			return resp.Text, nil
		},
		cfg.SummaryModel,
		config.DefaultSummaryTimeout,
	)

	layout := session.DefaultLayout()
	orch := session.NewOrchestrator(sess, layout, beats, personas, images)
	return session.NewScheduler(sess, orch, layout, config.DefaultPageInterval, summarizer, onStage)
}

// BuildPublisher は号の書き出しを担当するパブリッシャーを構築するのだ。
func BuildPublisher(appCtx *AppContext) *publisher.IssuePublisher {
	return publisher.NewIssuePublisher(appCtx.Writer)
}

// BuildPersonaLoader は参照画像の取り込みローダーを構築するのだ。
func BuildPersonaLoader(appCtx *AppContext) *uploads.Loader {
	return uploads.NewLoader(appCtx.Reader)
}

// FetchPremise はWebページから本文を抽出し、あらすじとして使える長さに
// 切り詰めて返します。
func FetchPremise(ctx context.Context, appCtx *AppContext, url string) (string, error) {
	extractor, err := extract.NewExtractor(appCtx.HTTPClient)
	if err != nil {
		return "", fmt.Errorf("エクストラクタの初期化に失敗しました: %w", err)
	}

	text, _, err := extractor.FetchAndExtractText(ctx, url)
	if err != nil {
		return "", fmt.Errorf("あらすじの取得に失敗しました: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("'%s' から本文を抽出できませんでした", url)
	}
	if runes := []rune(text); len(runes) > premiseLimit {
		text = string(runes[:premiseLimit])
	}
	return text, nil
}
