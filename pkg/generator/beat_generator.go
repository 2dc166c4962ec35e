package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/shouni/go-comic-studio/pkg/adapters"
	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/envelope"
	"github.com/shouni/go-comic-studio/pkg/prompts"

	"google.golang.org/genai"
)

// DefaultCoStarFocusBias は、直前のビートが相棒フォーカスでなかった場合に
// 新しいビートを相棒フォーカスへ寄せる確率なのだ。
const DefaultCoStarFocusBias = 0.60

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// speakerLabelRegex はキャプション/セリフ先頭の「話者名:」形式の前置きです。
var speakerLabelRegex = regexp.MustCompile(`^\s*[\p{L}\p{N}_][\p{L}\p{N}_ ]{0,24}\s*[:：]\s*`)

// BeatInput はビート生成1回分の入力です。History は読み取り専用なのだ。
type BeatInput struct {
	History    []domain.HistoryEntry
	PageNumber int
	MaxPage    int
	IsDecision bool
	Settings   domain.Settings
	Issue      int
	Finale     bool
	Summary    string
	HeroName   string
	CoStarName string           // 相棒ペルソナ未登場なら空
	LastFocus  domain.FocusChar // 直近のビートのフォーカス
}

// BeatGenerator は履歴と設定を条件として次の物語ビートを生成します。
type BeatGenerator struct {
	caller    adapters.ModelCaller
	builder   *prompts.BeatPromptBuilder
	model     string
	timeout   time.Duration
	focusBias float64
	randFloat func() float64 // テストで確率を固定するために差し替え可能
}

// NewBeatGenerator は BeatGenerator の新しいインスタンスを生成して返すのだ。
func NewBeatGenerator(caller adapters.ModelCaller, model string, timeout time.Duration) *BeatGenerator {
	return &BeatGenerator{
		caller:    caller,
		builder:   prompts.NewBeatPromptBuilder(),
		model:     model,
		timeout:   timeout,
		focusBias: DefaultCoStarFocusBias,
		randFloat: rand.Float64,
	}
}

// Generate は次のビートを1つ生成します。
// 認証エラー以外の失敗は伝播せず、文脈に応じたデフォルトビートに
// フォールバックするのだ。返り値のビートは常に不変条件
// （scene 非空、focus_char は列挙値、choices は選択ページのみ）を満たします。
func (bg *BeatGenerator) Generate(ctx context.Context, in BeatInput) (domain.Beat, error) {
	// 相棒フォーカスの確率バイアス: 相棒が存在し、直前が相棒フォーカスで
	// なかった場合のみ抽選するのだ
	forceCoStar := in.CoStarName != "" && in.LastFocus != domain.FocusFriend && bg.randFloat() < bg.focusBias

	prompt := bg.builder.Build(prompts.BeatTemplateData{
		History:     in.History,
		PageNumber:  in.PageNumber,
		MaxPage:     in.MaxPage,
		IsDecision:  in.IsDecision,
		Settings:    in.Settings,
		Issue:       in.Issue,
		Finale:      in.Finale,
		Summary:     in.Summary,
		HeroName:    in.HeroName,
		CoStarName:  in.CoStarName,
		ForceCoStar: forceCoStar,
	})

	resp, err := envelope.Run(ctx, bg.timeout, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return bg.caller.GenerateContent(ctx, bg.model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			SafetySettings:   adapters.BlockNoneSafetySettings(),
		})
	})
	if err != nil {
		if envelope.IsAuth(err) {
			return domain.Beat{}, err
		}
		slog.Warn("ビート生成に失敗したためデフォルトビートで継続するのだ",
			"page", in.PageNumber, "kind", envelope.KindOf(err).String(), "error", err)
		return bg.defaultBeat(in), nil
	}

	raw := firstCandidateText(resp)
	if raw == "" {
		slog.Warn("ビート応答にテキストが含まれていませんでした", "page", in.PageNumber)
		return bg.defaultBeat(in), nil
	}

	beat, parseErr := parseBeat(raw)
	if parseErr != nil {
		slog.Warn("ビート応答のパースに失敗したためデフォルトビートで継続するのだ",
			"page", in.PageNumber, "error", parseErr)
		return bg.defaultBeat(in), nil
	}

	repairBeat(&beat, in)
	if forceCoStar {
		beat.FocusChar = domain.FocusFriend
	}
	return beat, nil
}

// defaultBeat は失敗時の文脈依存フォールバックなのだ。非致命扱いで使われます。
func (bg *BeatGenerator) defaultBeat(in BeatInput) domain.Beat {
	beat := domain.Beat{
		Caption:   "……",
		Scene:     defaultScene(in),
		FocusChar: domain.FocusHero,
	}
	if in.IsDecision {
		beat.Choices = []string{prompts.DefaultChoiceA, prompts.DefaultChoiceB}
	}
	return beat
}

// defaultScene はページ位置に応じた無難な英語シーンを合成します。
func defaultScene(in BeatInput) string {
	switch {
	case in.PageNumber <= 1:
		return "The hero stands at the threshold of a new adventure, wind in their hair."
	case in.PageNumber >= in.MaxPage:
		return "The hero gazes toward the horizon as the chapter draws to a close."
	default:
		return "The hero pauses mid-journey, tension hanging in the air."
	}
}

// parseBeat は AI の応答からコードフェンス等を剥がして JSON としてパースします。
func parseBeat(raw string) (domain.Beat, error) {
	raw = strings.TrimSpace(raw)
	var rawJSON string

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else if first, last := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); first != -1 && last > first {
		rawJSON = raw[first : last+1]
	} else {
		rawJSON = raw
	}

	// focus_char は列挙値の保証がないため、いったん生の文字列で受けるのだ
	var loose struct {
		Caption   string   `json:"caption"`
		Dialogue  string   `json:"dialogue"`
		Scene     string   `json:"scene"`
		FocusChar string   `json:"focus_char"`
		Choices   []string `json:"choices"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &loose); err != nil {
		return domain.Beat{}, fmt.Errorf("ビートJSONの解析に失敗しました: %w", err)
	}

	return domain.Beat{
		Caption:   loose.Caption,
		Dialogue:  loose.Dialogue,
		Scene:     loose.Scene,
		FocusChar: domain.NormalizeFocus(loose.FocusChar),
		Choices:   loose.Choices,
	}, nil
}

// repairBeat はパース済みビートを不変条件を満たす形に防御的に修復するのだ。
func repairBeat(beat *domain.Beat, in BeatInput) {
	beat.Caption = stripSpeakerArtifacts(beat.Caption)
	beat.Dialogue = stripSpeakerArtifacts(beat.Dialogue)

	if strings.TrimSpace(beat.Scene) == "" {
		beat.Scene = defaultScene(in)
	}

	if !in.IsDecision {
		beat.Choices = nil
		return
	}
	// 選択ページで選択肢が不足していたら既定値を補充するのだ
	cleaned := beat.Choices[:0]
	for _, c := range beat.Choices {
		if s := strings.TrimSpace(c); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	beat.Choices = cleaned
	if len(beat.Choices) < 2 {
		defaults := []string{prompts.DefaultChoiceA, prompts.DefaultChoiceB}
		for _, d := range defaults {
			if len(beat.Choices) >= 2 {
				break
			}
			beat.Choices = append(beat.Choices, d)
		}
	}
}

// stripSpeakerArtifacts は「話者名:」の前置きと囲み引用符を取り除きます。
func stripSpeakerArtifacts(s string) string {
	s = strings.TrimSpace(s)
	s = speakerLabelRegex.ReplaceAllString(s, "")
	s = strings.Trim(s, "\"“”「」『』")
	return strings.TrimSpace(s)
}

// firstCandidateText は最初の候補からテキストパートを連結して返します。
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
