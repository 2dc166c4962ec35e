// Package uploads はペルソナの参照画像をローカルやGCSから取り込み、
// モデルに添付できる形へ正規化します。
package uploads

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	_ "image/gif"  // image.Decode 用のフォーマット登録
	_ "image/jpeg" // 同上

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"golang.org/x/image/draw"
)

// MaxReferenceDim は参照画像の長辺の上限ピクセル数です。
// これを超える画像は縮小してからモデルに渡すのだ。
const MaxReferenceDim = 1024

// Loader は参照画像の読み込みと正規化を担います。
type Loader struct {
	reader remoteio.InputReader
}

// NewLoader は Loader の新しいインスタンスを生成して返すのだ。
func NewLoader(reader remoteio.InputReader) *Loader {
	return &Loader{reader: reader}
}

// LoadPersonaImage はパス（ローカルまたは gs://）から画像を読み込み、
// 正規化済みのバイト列とMIMEタイプを返します。長辺が上限以下の
// PNG/JPEG はそのまま、それ以外は縮小・PNG再エンコードするのだ。
func (l *Loader) LoadPersonaImage(ctx context.Context, path string) ([]byte, string, error) {
	rc, err := l.reader.Open(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("参照画像 '%s' を開けませんでした: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("参照画像の読み込みに失敗しました: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("参照画像をデコードできませんでした（対応形式: png/jpeg/gif）: %w", err)
	}

	if longestSide(img.Bounds()) <= MaxReferenceDim {
		switch format {
		case "png":
			return data, "image/png", nil
		case "jpeg":
			return data, "image/jpeg", nil
		}
		// gif などは縮小不要でもPNGへ揃えるのだ
		return reencodePNG(img)
	}
	return reencodePNG(downscale(img))
}

// downscale は長辺が MaxReferenceDim に収まるよう縦横比を保って縮小します。
func downscale(src image.Image) image.Image {
	bounds := src.Bounds()
	longest := longestSide(bounds)

	scaledW := bounds.Dx() * MaxReferenceDim / longest
	scaledH := bounds.Dy() * MaxReferenceDim / longest

	dst := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func reencodePNG(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("参照画像の再エンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

func longestSide(bounds image.Rectangle) int {
	if bounds.Dx() > bounds.Dy() {
		return bounds.Dx()
	}
	return bounds.Dy()
}
