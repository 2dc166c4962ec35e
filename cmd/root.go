package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-comic-studio/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// appOptions はコマンドラインから渡される実行時設定なのだ。
type appOptions struct {
	// --- 物語の設定 ---
	Genre      string
	Premise    string
	PremiseURL string
	Tone       string
	Language   string
	Rich       bool
	Fidelity   int

	// --- 登場人物 ---
	HeroName    string
	HeroImage   string
	FriendName  string
	FriendDesc  string
	FriendImage string

	// --- 連載の進め方 ---
	Issues     int
	Finale     bool
	AutoChoice bool

	// --- 出力・モデル ---
	OutputDir  string
	TextModel  string
	ImageModel string
}

var opts appOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 物語の設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.Genre, "genre", "g", "Fantasy", "物語のジャンル（Custom なら --premise が必須なのだ）。")
	rootCmd.PersistentFlags().StringVar(&opts.Premise, "premise", "", "物語のあらすじ（Custom ジャンル用）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.PremiseURL, "premise-url", "u", "", "Webページからあらすじを取り込むURLなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Tone, "tone", "lighthearted", "語り口のトーンなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Language, "language", "l", "Japanese", "セリフとキャプションの言語なのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.Rich, "rich", false, "文章量を増やすリッチモードなのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.Fidelity, "fidelity", 2, "参照画像への忠実度（1〜3）なのだ。")

	// --- 登場人物 ---
	rootCmd.PersistentFlags().StringVar(&opts.HeroName, "hero-name", "Hero", "主人公の名前なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.HeroImage, "hero-image", "", "主人公の参照画像パス（ローカル or gs://、必須なのだ）。")
	rootCmd.PersistentFlags().StringVar(&opts.FriendName, "friend-name", "", "相棒の名前（省略可）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.FriendDesc, "friend-desc", "", "相棒の外見の説明（画像が無いときの合成用）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.FriendImage, "friend-image", "", "相棒の参照画像パス（省略可）なのだ。")

	// --- 連載の進め方 ---
	rootCmd.PersistentFlags().IntVarP(&opts.Issues, "issues", "n", 1, "生成する号数なのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.Finale, "finale", false, "最終号として物語を完結させるのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.AutoChoice, "auto", false, "選択ページで常に最初の選択肢を選ぶのだ。")

	// --- 出力・モデル ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultLocalFile, "完成した号の保存先（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.TextModel, "model", "", "ビート生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", "", "イラスト生成に使う Gemini モデル名なのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// .env があれば読み込む（無くてもエラーにしない）
	_ = godotenv.Load()

	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"comic-studio",
		addAppFlags,
		preRunAppE,
		sessionCmd,
	)
}
