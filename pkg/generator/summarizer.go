package generator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/envelope"
	"github.com/shouni/go-comic-studio/pkg/prompts"
)

// FallbackRecap は号のまとめ生成が失敗したときの汎用スタブです。
// 次号のプロンプトに混ざっても害のない英語の1文にしてあるのだ。
const FallbackRecap = "The story continues where the last issue left off."

// TextGenerateFunc は軽量なテキスト生成呼び出しの契約です。
// 号のまとめには候補検査もフォールバックラダーも不要なため、
// 高機能なクライアントをこの関数型に包んで注入します。
type TextGenerateFunc func(ctx context.Context, prompt, model string) (string, error)

// IssueSummarizer は終了した号の履歴を短いあらすじ1段落に要約します。
type IssueSummarizer struct {
	generate TextGenerateFunc
	model    string
	timeout  time.Duration
}

// NewIssueSummarizer は IssueSummarizer の新しいインスタンスを生成するのだ。
func NewIssueSummarizer(generate TextGenerateFunc, model string, timeout time.Duration) *IssueSummarizer {
	return &IssueSummarizer{
		generate: generate,
		model:    model,
		timeout:  timeout,
	}
}

// Summarize は号の履歴からあらすじを生成します。
// どんな失敗でも汎用スタブにフォールバックし、決して致命にはならないのだ。
func (is *IssueSummarizer) Summarize(ctx context.Context, history []domain.HistoryEntry, issue int) string {
	if len(history) == 0 {
		return FallbackRecap
	}

	prompt := prompts.BuildSummaryPrompt(history, issue)
	recap, err := envelope.Run(ctx, is.timeout, func(ctx context.Context) (string, error) {
		return is.generate(ctx, prompt, is.model)
	})
	if err != nil {
		slog.Warn("号のまとめ生成に失敗したため汎用スタブで継続するのだ",
			"issue", issue, "kind", envelope.KindOf(err).String(), "error", err)
		return FallbackRecap
	}

	recap = strings.TrimSpace(recap)
	if recap == "" {
		return FallbackRecap
	}
	return recap
}
