package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultTextModel    = "gemini-3-flash-preview"
	DefaultImageModel   = "gemini-3-pro-image-preview"
	DefaultSummaryModel = "gemini-3-flash-preview"
	DefaultHTTPTimeout  = 30 * time.Second

	DefaultTextTimeout    = 90 * time.Second  // ビート生成・ペルソナ合成の上限
	DefaultImageTimeout   = 180 * time.Second // 画像生成は重いので長め
	DefaultSummaryTimeout = 45 * time.Second  // 号のまとめは軽量な呼び出し

	DefaultPageInterval = 4 * time.Second // バッチ内のページ間ディレイ（レート制限対策）
	DefaultLocalFile    = "output/comic"  // パブリッシャーのデフォルト保存先
)

// 紙面レイアウトの固定定数。コアはこれを厳密に守るのだ。
const (
	MaxPageIndex   = 20 // 裏表紙のインデックス。本編は 1〜19
	InitialPages   = 2  // 初回に同期生成する本編ページ数（ゲート含む）
	GatePageIndex  = 1  // 表紙の次に読める状態になるための必須ページ
	DefaultBatch   = 3  // 2回目以降のバッチサイズ
	DefaultLogSize = 50 // ユーザー向けログフィードの保持件数
)

// DecisionPageIndices は読者の選択を求める固定のページ番号集合です。
var DecisionPageIndices = map[int]bool{
	4:  true,
	8:  true,
	12: true,
	16: true,
}

// IsDecisionPage は指定ページが選択ページかどうかを返します。
func IsDecisionPage(index int) bool {
	return DecisionPageIndices[index]
}

// Config はアプリケーション全体の環境設定を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey string
	TextModel    string
	ImageModel   string
	SummaryModel string
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	return &Config{
		GeminiAPIKey: envutil.GetEnv("GEMINI_API_KEY", ""),
		TextModel:    envutil.GetEnv("GEMINI_MODEL", DefaultTextModel),
		ImageModel:   envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		SummaryModel: envutil.GetEnv("SUMMARY_GEMINI_MODEL", DefaultSummaryModel),
	}
}
