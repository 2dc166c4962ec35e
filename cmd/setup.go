package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-studio/internal/builder"
	"github.com/shouni/go-comic-studio/pkg/domain"
)

// resolveSettings はフラグとWeb取り込みからセッション設定を組み立てるのだ。
func resolveSettings(ctx context.Context, appCtx *builder.AppContext) (domain.Settings, error) {
	premise := opts.Premise
	if opts.PremiseURL != "" {
		fetched, err := builder.FetchPremise(ctx, appCtx, opts.PremiseURL)
		if err != nil {
			return domain.Settings{}, err
		}
		premise = fetched
		slog.Info("Webからあらすじを取り込んだのだ", "url", opts.PremiseURL, "chars", len([]rune(premise)))
	}

	settings := domain.Settings{
		Genre:    opts.Genre,
		Premise:  premise,
		Tone:     opts.Tone,
		Language: opts.Language,
		Rich:     opts.Rich,
		Fidelity: opts.Fidelity,
	}
	if settings.Genre == domain.GenreCustom && settings.Premise == "" {
		return domain.Settings{}, fmt.Errorf("カスタムジャンルには --premise か --premise-url が必要なのだ")
	}
	return settings, nil
}

// loadPersonas は主人公（必須）と相棒（任意）のペルソナを組み立てるのだ。
func loadPersonas(ctx context.Context, appCtx *builder.AppContext) (*domain.Persona, *domain.Persona, error) {
	loader := builder.BuildPersonaLoader(appCtx)

	heroImage, heroMime, err := loader.LoadPersonaImage(ctx, opts.HeroImage)
	if err != nil {
		return nil, nil, fmt.Errorf("主人公の参照画像の取り込みに失敗したのだ: %w", err)
	}
	hero := &domain.Persona{Name: opts.HeroName, Image: heroImage, MimeType: heroMime}

	var friend *domain.Persona
	if opts.FriendName != "" {
		friend = &domain.Persona{Name: opts.FriendName, Description: opts.FriendDesc}
		if opts.FriendImage != "" {
			img, mime, err := loader.LoadPersonaImage(ctx, opts.FriendImage)
			if err != nil {
				return nil, nil, fmt.Errorf("相棒の参照画像の取り込みに失敗したのだ: %w", err)
			}
			friend.Image = img
			friend.MimeType = mime
		}
	}
	return hero, friend, nil
}
