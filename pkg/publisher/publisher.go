// Package publisher は完成した号の成果物（イラストと台本ダイジェスト）を
// ローカルまたはリモートストレージへ書き出します。
package publisher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shouni/go-comic-studio/pkg/domain"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-utils/urlpath"
	"golang.org/x/sync/errgroup"
)

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string
}

// PublishResult はパブリッシュ処理で生成されたファイルの情報を保持します。
type PublishResult struct {
	MarkdownPath string   // 生成されたダイジェスト Markdown のパス
	ImagePaths   []string // 保存された全ページ画像のパスリスト
}

const (
	digestNameFormat   = "issue_%02d.md"
	imageDirName       = "images"
	imageUploadWorkers = 4
)

// IssuePublisher は号単位の成果物の永続化を担います。
// 書き込み先は remoteio の抽象に任せるため、ローカルFSでもGCSでも同じ経路なのだ。
type IssuePublisher struct {
	writer remoteio.OutputWriter
}

// NewIssuePublisher は IssuePublisher の新しいインスタンスを生成して返すのだ。
func NewIssuePublisher(writer remoteio.OutputWriter) *IssuePublisher {
	return &IssuePublisher{writer: writer}
}

// Publish は号の全ページ画像を並行保存し、台本ダイジェストの Markdown を
// 構築して書き出します。画像が未確定（読み込み中）のページはスキップするのだ。
func (p *IssuePublisher) Publish(ctx context.Context, pages []*domain.Page, settings domain.Settings, issue int, opts Options) (PublishResult, error) {
	result := PublishResult{}

	sorted := make([]*domain.Page, 0, len(pages))
	for _, page := range pages {
		if page != nil && !page.IsLoading && page.ImageURI != "" {
			sorted = append(sorted, page)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	if len(sorted) == 0 {
		return result, fmt.Errorf("書き出せる完成ページがありません")
	}

	imgDir, err := urlpath.ResolveOutputPath(opts.OutputDir, imageDirName)
	if err != nil {
		return result, err
	}

	savedPaths, err := p.saveImages(ctx, sorted, imgDir)
	if err != nil {
		return result, fmt.Errorf("ページ画像の書き込みに失敗しました: %w", err)
	}
	result.ImagePaths = compact(savedPaths)

	relativePaths := make([]string, len(savedPaths))
	for i, pathStr := range savedPaths {
		if pathStr != "" {
			relativePaths[i] = path.Join(imageDirName, filepath.Base(pathStr))
		}
	}

	content := buildDigest(sorted, relativePaths, settings, issue)

	digestPath, err := urlpath.ResolveOutputPath(opts.OutputDir, fmt.Sprintf(digestNameFormat, issue))
	if err != nil {
		return result, err
	}
	if err := p.writer.Write(ctx, digestPath, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return result, fmt.Errorf("ダイジェストの書き込みに失敗しました: %w", err)
	}
	result.MarkdownPath = digestPath

	slog.Info("号の書き出しが完了したのだ", "issue", issue, "pages", len(sorted), "digest", digestPath)
	return result, nil
}

// saveImages は各ページのインライン画像をデコードして並行書き込みします。
// 返り値はページと同じ並びで、デコード不能なページは空文字列になるのだ。
func (p *IssuePublisher) saveImages(ctx context.Context, pages []*domain.Page, baseDir string) ([]string, error) {
	paths := make([]string, len(pages))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(imageUploadWorkers)

	for i, page := range pages {
		g.Go(func() error {
			mime, data, err := DecodeDataURI(page.ImageURI)
			if err != nil {
				// プレースホルダーも含め data URI のはずなので、壊れていたら飛ばすだけ
				slog.Warn("ページ画像のデコードに失敗したためスキップするのだ", "page", page.Index, "error", err)
				return nil
			}

			name := fmt.Sprintf("page_%02d%s", page.Index, extensionFor(mime))
			fullPath, err := urlpath.ResolveOutputPath(baseDir, name)
			if err != nil {
				return err
			}
			if err := p.writer.Write(gCtx, fullPath, bytes.NewReader(data), mime); err != nil {
				return fmt.Errorf("画像の書き込みに失敗しました %s: %w", fullPath, err)
			}
			paths[i] = fullPath
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// buildDigest は号の台本ダイジェスト Markdown を構築するのだ。
func buildDigest(pages []*domain.Page, imagePaths []string, settings domain.Settings, issue int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s — Issue #%d\n\n", settings.Genre, issue))
	if settings.Premise != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", settings.Premise))
	}

	for i, page := range pages {
		sb.WriteString(fmt.Sprintf("## %s\n\n", pageHeading(page)))
		if i < len(imagePaths) && imagePaths[i] != "" {
			sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", pageHeading(page), imagePaths[i]))
		}

		if page.Beat == nil {
			continue
		}
		if page.Beat.Caption != "" {
			sb.WriteString(fmt.Sprintf("%s\n\n", page.Beat.Caption))
		}
		if page.Beat.Dialogue != "" {
			sb.WriteString(fmt.Sprintf("> %s\n\n", page.Beat.Dialogue))
		}
		if len(page.Beat.Choices) > 0 {
			sb.WriteString("Choices:\n\n")
			for _, choice := range page.Beat.Choices {
				marker := "-"
				if choice == page.Choice {
					marker = "- **[chosen]**"
				}
				sb.WriteString(fmt.Sprintf("%s %s\n", marker, choice))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func pageHeading(page *domain.Page) string {
	switch page.Type {
	case domain.PageTypeCover:
		return "Cover"
	case domain.PageTypeBackCover:
		return "Back Cover"
	default:
		return fmt.Sprintf("Page %d", page.Index)
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func compact(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
