// Package builder はアプリケーションの依存関係を組み立てる配線層なのだ。
package builder

import (
	"context"
	"fmt"

	"github.com/shouni/go-comic-studio/internal/config"
	"github.com/shouni/go-comic-studio/pkg/adapters"

	"github.com/shouni/go-gemini-client/gemini"
	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"google.golang.org/genai"
)

// AppContext は、アプリケーション実行に必要な共通コンポーネントを保持します。
// これを各Build関数に渡すことで、依存関係の注入を簡素化するのだ。
type AppContext struct {
	Config     *config.Config
	Reader     remoteio.InputReader    // Readerは、参照画像やあらすじファイルの読み込みに使う入力元です
	Writer     remoteio.OutputWriter   // Writerは、完成した号の書き出しに使う出力先です
	Caller     adapters.ModelCaller    // Callerは、候補検査が必要な生成（ビート・画像・ペルソナ）用の低レベルクライアントです
	TextClient gemini.GenerativeModel  // TextClientは、号のまとめなど軽量なテキスト生成用の共通クライアントです
	HTTPClient httpkit.ClientInterface // HTTPClientは、Webからのあらすじ取得に使う共通クライアントです
}

// NewAppContext は共有コンポーネントを一括で初期化して返すのだ。
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	httpClient := httpkit.New(config.DefaultHTTPTimeout)

	caller, err := adapters.NewGeminiCaller(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}

	textClient, err := initializeTextClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	return &AppContext{
		Config:     cfg,
		Reader:     reader,
		Writer:     writer,
		Caller:     caller,
		TextClient: textClient,
		HTTPClient: httpClient,
	}, nil
}

// initializeTextClient は軽量テキスト生成用の gemini クライアントを初期化します。
func initializeTextClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultTemperature = float32(0.7)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}
