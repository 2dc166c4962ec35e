package prompts

import (
	"fmt"
	"strings"
)

// BuildPersonaPrompt は、テキスト記述から相棒キャラクターの参照イラストを
// 1枚生成させるためのプロンプトを構築するのだ。
func BuildPersonaPrompt(description, genre string) string {
	var sb strings.Builder
	sb.WriteString("Create a single full-body character reference illustration.\n\n")
	sb.WriteString(fmt.Sprintf("Character: %s\n", description))
	if genre != "" {
		sb.WriteString(fmt.Sprintf("Story genre (for costume and mood): %s\n", genre))
	}
	sb.WriteString("\nNeutral standing pose, plain background, clear view of face and outfit.\n")
	sb.WriteString(RenderingStyle)
	return sb.String()
}
