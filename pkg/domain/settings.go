package domain

// GenreCustom はユーザー自身のあらすじ（Premise）を使う特別なジャンル名です。
const GenreCustom = "Custom"

// Settings はユーザーが選択したセッション設定です。
// 生成中は読み取り専用として扱い、変更はセッションのリセットを伴うのだ。
type Settings struct {
	Genre    string // ジャンル名。GenreCustom の場合は Premise が必須
	Premise  string // カスタムあらすじ（Genre == GenreCustom のときのみ使用）
	Tone     string // 物語のトーン（"comedy", "serious" 等）
	Language string // 読者向けテキストの言語（例: "Japanese"）
	Rich     bool   // true ならキャプション・セリフの語数上限を引き上げる
	Fidelity int    // 参照画像への忠実度 1-3（3が最も厳密）
}

// FidelityLevel は範囲外の忠実度設定を 1-3 に丸めて返します。
func (s Settings) FidelityLevel() int {
	if s.Fidelity < 1 {
		return 1
	}
	if s.Fidelity > 3 {
		return 3
	}
	return s.Fidelity
}
