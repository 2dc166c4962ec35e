package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/shouni/go-comic-studio/pkg/adapters"
	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/envelope"
	"github.com/shouni/go-comic-studio/pkg/prompts"

	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"
)

// PersonaSynthesizer はテキスト記述から登場人物の視覚的アイデンティティを
// 生成します。参照画像を持たない相棒キャラクターが初めてフォーカスに
// なったときに遅延的に呼ばれるのだ。再試行ラダーは持たず、1回きりの試行です。
type PersonaSynthesizer struct {
	caller  adapters.ModelCaller
	model   string
	timeout time.Duration
	group   singleflight.Group // 同じ人物の合成が並行して走るのを防ぐ
}

// NewPersonaSynthesizer は PersonaSynthesizer の新しいインスタンスを生成します。
func NewPersonaSynthesizer(caller adapters.ModelCaller, model string, timeout time.Duration) *PersonaSynthesizer {
	return &PersonaSynthesizer{
		caller:  caller,
		model:   model,
		timeout: timeout,
	}
}

// Synthesize は記述から参照イラスト付きのペルソナを生成して返します。
// 失敗時は呼び出し側がそのページのフォーカスを降格させる前提なのだ
// （非致命、再試行なし）。
func (ps *PersonaSynthesizer) Synthesize(ctx context.Context, name, description, genre string) (*domain.Persona, error) {
	val, err, _ := ps.group.Do(name, func() (interface{}, error) {
		return ps.synthesize(ctx, name, description, genre)
	})
	if err != nil {
		return nil, err
	}
	persona, ok := val.(*domain.Persona)
	if !ok {
		return nil, fmt.Errorf("singleflight から想定外の型が返されました: %T", val)
	}
	return persona, nil
}

func (ps *PersonaSynthesizer) synthesize(ctx context.Context, name, description, genre string) (*domain.Persona, error) {
	prompt := prompts.BuildPersonaPrompt(description, genre)

	resp, err := envelope.Run(ctx, ps.timeout, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return ps.caller.GenerateContent(ctx, ps.model, genai.Text(prompt), &genai.GenerateContentConfig{
			SafetySettings:     adapters.BlockNoneSafetySettings(),
			ResponseModalities: []string{"IMAGE", "TEXT"},
			ImageConfig:        &genai.ImageConfig{AspectRatio: "1:1"},
		})
	})
	if err != nil {
		return nil, err
	}

	image, mime, found := firstInlineImage(resp)
	if !found {
		return nil, envelope.NewGeneric("ペルソナ応答に画像が含まれていませんでした")
	}

	return &domain.Persona{
		Name:        name,
		Image:       image,
		MimeType:    mime,
		Description: description,
	}, nil
}

// firstInlineImage は最初の候補からインライン画像を探します。
func firstInlineImage(resp *genai.GenerateContentResponse) (data []byte, mime string, found bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return part.InlineData.Data, mime, true
		}
	}
	return nil, "", false
}
