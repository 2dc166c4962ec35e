package generator

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
)

// PlaceholderKind は失敗カテゴリを視覚的に伝えるプレースホルダー画像の区分です。
// 空白のコマを黙って見せるのではなく、何が起きたかを色で示すのだ。
type PlaceholderKind int

const (
	PlaceholderFiltered PlaceholderKind = iota // 安全性フィルタでラダーを使い切った
	PlaceholderFailed                          // 一般的な生成失敗・タイムアウト
	PlaceholderAuth                            // 資格情報エラー
)

const (
	placeholderWidth  = 512
	placeholderHeight = 640
)

var placeholderPalette = map[PlaceholderKind][2]color.RGBA{
	PlaceholderFiltered: {{R: 0x6b, G: 0x5b, B: 0x95, A: 0xff}, {R: 0xd6, G: 0xcd, B: 0xea, A: 0xff}}, // 紫系
	PlaceholderFailed:   {{R: 0x4a, G: 0x4a, B: 0x4a, A: 0xff}, {R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}}, // 灰系
	PlaceholderAuth:     {{R: 0x9e, G: 0x2a, B: 0x2b, A: 0xff}, {R: 0xe8, G: 0xb4, B: 0xb8, A: 0xff}}, // 赤系
}

var (
	placeholderOnce sync.Once
	placeholderURIs map[PlaceholderKind]string
)

// PlaceholderDataURI は指定カテゴリのプレースホルダー画像を data URI で返します。
// 画像はローカルで一度だけ生成され、以後は再利用されるのだ。
func PlaceholderDataURI(kind PlaceholderKind) string {
	placeholderOnce.Do(buildPlaceholders)
	return placeholderURIs[kind]
}

func buildPlaceholders() {
	placeholderURIs = make(map[PlaceholderKind]string, len(placeholderPalette))
	for kind, palette := range placeholderPalette {
		placeholderURIs[kind] = renderPlaceholder(palette[0], palette[1])
	}
}

// renderPlaceholder は地色＋中央の帯だけの簡素なPNGを組み立てます。
// 外部リソースに一切依存しないため、パイプラインが停止することはないのだ。
func renderPlaceholder(base, band color.RGBA) string {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: base}, image.Point{}, draw.Src)

	bandRect := image.Rect(0, placeholderHeight/2-40, placeholderWidth, placeholderHeight/2+40)
	draw.Draw(img, bandRect, &image.Uniform{C: band}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// 固定サイズのメモリ上エンコードが失敗することは実質あり得ない
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
