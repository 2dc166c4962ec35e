package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-comic-studio/pkg/adapters"
	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/envelope"
	"github.com/shouni/go-comic-studio/pkg/prompts"

	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"
)

// maxLadderLevel はフォールバックラダーの最終レベルです。
// 0: 原文どおり / 1: フィクション但し書き / 2: 暴力語彙の置換 / 3: 参照画像なし。
const maxLadderLevel = 3

const pageAspectRatio = "3:4"

// RenderInput は1枚のイラスト生成の入力です。
type RenderInput struct {
	PageID     string // レンダリング結果のキャッシュキー
	Beat       domain.Beat
	PageType   domain.PageType
	PageNumber int
	Settings   domain.Settings
	Issue      int
	Finale     bool
	Personas   []*domain.Persona // 参照画像として添付するペルソナ群
}

// ImageRenderer はビートをイラストに変換します。安全性ブロックに対しては
// 4段階のフォールバックラダーを厳密な順序で適用し、使い切った場合や
// 回復不能なエラーではプレースホルダー画像を返すため、
// パイプラインが停止することはないのだ。
type ImageRenderer struct {
	caller  adapters.ModelCaller
	builder *prompts.ImagePromptBuilder
	model   string
	timeout time.Duration
	renders *cache.Cache // PageID -> data URI。再実行時の冪等性を担保する

	// Notify が設定されていれば、フォールバックの各段をユーザー向け
	// ログフィードにも流すのだ。
	Notify func(msg string)
}

// NewImageRenderer は ImageRenderer の新しいインスタンスを生成して返すのだ。
func NewImageRenderer(caller adapters.ModelCaller, model string, timeout time.Duration) *ImageRenderer {
	return &ImageRenderer{
		caller:  caller,
		builder: prompts.NewImagePromptBuilder(),
		model:   model,
		timeout: timeout,
		renders: cache.New(cache.NoExpiration, 0),
	}
}

// Render はイラストを生成し、直接埋め込み可能な data URI を返します。
// 返り値の文字列は常に非空（実画像またはプレースホルダー）です。
// エラーが非 nil になるのは認証エラーのときだけで、その場合も
// 認証用プレースホルダーを併せて返すのだ。
func (ir *ImageRenderer) Render(ctx context.Context, in RenderInput) (string, error) {
	// 同じページを再オーケストレーションしても、確定済みのレンダリングは
	// モデルを呼び直さず再利用するのだ
	if cached, ok := ir.renders.Get(in.PageID); ok {
		return cached.(string), nil
	}

	data := prompts.ImageTemplateData{
		Beat:                in.Beat,
		PageType:            in.PageType,
		PageNumber:          in.PageNumber,
		Settings:            in.Settings,
		Issue:               in.Issue,
		Finale:              in.Finale,
		PersonaDescriptions: personaDescriptions(in.Personas),
	}

	for level := 0; level <= maxLadderLevel; level++ {
		if level > 0 {
			ir.notify(fmt.Sprintf("安全性ブロックのため、より控えめな表現で再試行します（レベル%d）", level))
		}

		uri, err := ir.attempt(ctx, data, level, in.Personas)
		if err == nil {
			ir.renders.Set(in.PageID, uri, cache.NoExpiration)
			return uri, nil
		}

		switch envelope.KindOf(err) {
		case envelope.KindSafety:
			slog.Warn("画像生成が安全性ブロックされたのだ",
				"page", in.PageNumber, "level", level, "error", err)
			continue // 次のレベルへエスカレーション
		case envelope.KindAuth:
			slog.Error("画像生成で認証エラーが発生しました", "page", in.PageNumber, "error", err)
			return PlaceholderDataURI(PlaceholderAuth), err
		default:
			// タイムアウト・一般エラーはラダーを継続せず即座に打ち切るのだ
			slog.Warn("画像生成に失敗したためプレースホルダーで継続するのだ",
				"page", in.PageNumber, "level", level, "kind", envelope.KindOf(err).String(), "error", err)
			return PlaceholderDataURI(PlaceholderFailed), nil
		}
	}

	ir.notify("フォールバックをすべて試しましたが、このコマは生成できませんでした")
	return PlaceholderDataURI(PlaceholderFiltered), nil
}

// attempt はラダーの1レベル分の生成呼び出しと応答検査を行います。
func (ir *ImageRenderer) attempt(ctx context.Context, data prompts.ImageTemplateData, level int, personas []*domain.Persona) (string, error) {
	prompt, includeRefs := ir.builder.Build(data, level)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if includeRefs {
		for _, p := range personas {
			if p.HasImage() {
				parts = append(parts, genai.NewPartFromBytes(p.Image, p.MimeType))
			}
		}
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := envelope.Run(ctx, ir.timeout, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return ir.caller.GenerateContent(ctx, ir.model, contents, &genai.GenerateContentConfig{
			SafetySettings:     adapters.BlockNoneSafetySettings(),
			ResponseModalities: []string{"IMAGE", "TEXT"},
			ImageConfig:        &genai.ImageConfig{AspectRatio: pageAspectRatio},
		})
	})
	if err != nil {
		return "", err
	}
	return inspectImageResponse(resp)
}

// inspectImageResponse は応答を固定の順序で検査するのだ:
// (1) 最初の候補のインライン画像 → 成功
// (2) テキストパートのみ → モデルの拒否説明とみなし安全性ブロック
// (3) 異常な finish reason → 安全性ブロック
// (4) それ以外 → 一般エラー（未知の構造）。
// 候補ゼロも安全性ブロック扱いで、次のレベルを試させます。
func inspectImageResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", envelope.NewSafety("候補がゼロ件でした")
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(part.InlineData.Data)), nil
			}
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" {
				return "", envelope.NewSafety("モデルが画像の代わりに説明を返しました: %s", truncate(part.Text, 120))
			}
		}
	}

	if cand.FinishReason != "" && cand.FinishReason != genai.FinishReasonStop {
		return "", envelope.NewSafety("異常な finish reason: %s", cand.FinishReason)
	}
	return "", envelope.NewGeneric("応答の構造を解釈できませんでした")
}

func (ir *ImageRenderer) notify(msg string) {
	if ir.Notify != nil {
		ir.Notify(msg)
	}
}

// personaDescriptions は参照画像を使わない最終レベル向けのテキスト記述を集めます。
func personaDescriptions(personas []*domain.Persona) []string {
	var descs []string
	for _, p := range personas {
		if p != nil && p.Description != "" {
			descs = append(descs, p.Description)
		}
	}
	return descs
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
