package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-comic-studio/pkg/domain"
)

func TestIssueSummarizer_Summarize(t *testing.T) {
	history := []domain.HistoryEntry{
		{Page: 1, Beat: domain.Beat{Caption: "出会い"}},
		{Page: 4, Beat: domain.Beat{Caption: "分岐"}, Choice: "追いかける"},
	}

	t.Run("生成結果をそのまま返すこと", func(t *testing.T) {
		var gotPrompt string
		is := NewIssueSummarizer(func(ctx context.Context, prompt, model string) (string, error) {
			gotPrompt = prompt
			return "  The hero chased the stranger into the old quarter.  ", nil
		}, "sum-model", time.Second)

		recap := is.Summarize(context.Background(), history, 1)
		if recap != "The hero chased the stranger into the old quarter." {
			t.Errorf("トリム済みの要約を期待しましたが %q でした", recap)
		}
		if !strings.Contains(gotPrompt, "reader chose: 追いかける") {
			t.Error("解決済み選択がプロンプトに含まれていません")
		}
	})

	t.Run("失敗時は汎用スタブで継続すること", func(t *testing.T) {
		is := NewIssueSummarizer(func(ctx context.Context, prompt, model string) (string, error) {
			return "", errors.New("upstream exploded")
		}, "sum-model", time.Second)

		if recap := is.Summarize(context.Background(), history, 1); recap != FallbackRecap {
			t.Errorf("スタブへのフォールバックを期待しましたが %q でした", recap)
		}
	})

	t.Run("履歴が空ならモデルを呼ばずスタブを返すこと", func(t *testing.T) {
		called := false
		is := NewIssueSummarizer(func(ctx context.Context, prompt, model string) (string, error) {
			called = true
			return "x", nil
		}, "sum-model", time.Second)

		if recap := is.Summarize(context.Background(), nil, 1); recap != FallbackRecap {
			t.Errorf("スタブを期待しましたが %q でした", recap)
		}
		if called {
			t.Error("空の履歴でモデルが呼ばれています")
		}
	})
}
