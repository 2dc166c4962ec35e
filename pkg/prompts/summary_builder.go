package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-comic-studio/pkg/domain"
)

// BuildSummaryPrompt は、終了した号の履歴から次号へ引き継ぐ短い
// あらすじ（1段落）を生成させるプロンプトを構築するのだ。
func BuildSummaryPrompt(history []domain.HistoryEntry, issue int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Summarize issue #%d of a serialized comic in ONE short paragraph (3-4 sentences).\n", issue))
	sb.WriteString("Focus on what the next issue's writer needs to know: who did what, where things stand, and any unresolved threads.\n\n")

	for _, h := range history {
		sb.WriteString(fmt.Sprintf("Page %d: %s", h.Page, h.Beat.Caption))
		if h.Choice != "" {
			sb.WriteString(fmt.Sprintf(" [reader chose: %s]", h.Choice))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nRespond with the paragraph only, no preamble.")
	return sb.String()
}
