// Package adapters は外部の生成AIサービスとの境界を細いインターフェースに
// 切り出します。パイプライン本体はここを通してしかモデルに触れないため、
// テストでは偽物に差し替えられるのだ。
package adapters

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// ModelCaller は1回のマルチモーダル生成呼び出しの契約です。
// 戻り値の候補（Candidates）検査は呼び出し側の責務とします。
type ModelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiCaller は Gemini API を使う ModelCaller の実体です。
type GeminiCaller struct {
	client *genai.Client
}

// NewGeminiCaller は API キーから Gemini クライアントを初期化します。
func NewGeminiCaller(ctx context.Context, apiKey string) (*GeminiCaller, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}
	return &GeminiCaller{client: client}, nil
}

// GenerateContent は genai SDK をそのまま叩く薄いラッパーなのだ。
func (g *GeminiCaller) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, cfg)
}

// BlockNoneSafetySettings は全カテゴリのしきい値を BLOCK_NONE に固定した
// 安全性設定を返します。フィルタリングの判断はモデル側に残るため、
// 拒否された場合の扱いはフォールバックラダーが引き受けるのだ。
func BlockNoneSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}
