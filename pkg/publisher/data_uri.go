package publisher

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURI は data:<mime>;base64,<payload> 形式の文字列を
// MIMEタイプと生バイト列に分解するのだ。
func DecodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("data URI ではありません")
	}

	meta, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", nil, fmt.Errorf("data URI にペイロード区切りがありません")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("base64 以外のエンコーディングには対応していません: %s", meta)
	}
	if mime == "" {
		mime = "image/png"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("base64 のデコードに失敗しました: %w", err)
	}
	return mime, data, nil
}
