package domain

// Persona は登場人物の視覚的アイデンティティを保持します。
// 参照画像（バイナリ＋MIMEタイプ）と、画像が存在しない場合に
// プロンプトへ注入するテキスト記述で構成されます。
type Persona struct {
	Name        string // 表示名（"hero", "friend" 等のロールではなく人物名）
	Image       []byte // 参照画像のバイナリ。ユーザーアップロードまたはAI生成
	MimeType    string // 例: "image/png"
	Description string // 画像が無い場合のフォールバック記述
}

// HasImage は参照画像が利用可能かどうかを返すのだ。
func (p *Persona) HasImage() bool {
	return p != nil && len(p.Image) > 0
}

// Replace はペルソナを丸ごと差し替えた新しい値を返します。
// 部分的な書き換えは許さず、常に全体置換で扱うのだ。
func (p *Persona) Replace(image []byte, mimeType string) *Persona {
	next := &Persona{
		Image:    image,
		MimeType: mimeType,
	}
	if p != nil {
		next.Name = p.Name
		next.Description = p.Description
	}
	return next
}
