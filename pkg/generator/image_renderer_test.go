package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/envelope"
	"github.com/shouni/go-comic-studio/pkg/prompts"

	"google.golang.org/genai"
)

func renderInput(pageID string) RenderInput {
	return RenderInput{
		PageID:     pageID,
		Beat:       domain.Beat{Scene: "the hero fights a shadowy figure with a knife"},
		PageType:   domain.PageTypeStory,
		PageNumber: 1,
		Settings:   domain.Settings{Genre: "Noir", Fidelity: 2},
		Issue:      1,
		Personas: []*domain.Persona{
			{Name: "ハルカ", Image: []byte{0x89, 0x50, 0x4e, 0x47}, MimeType: "image/png", Description: "a detective in a trench coat"},
		},
	}
}

func TestImageRenderer_Render(t *testing.T) {
	t.Run("レベル0で成功したら1回で終わること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{imageResponse([]byte{1, 2, 3}, "image/png")}}
		ir := NewImageRenderer(fake, "img-model", time.Second)

		uri, err := ir.Render(context.Background(), renderInput("p1"))
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if !strings.HasPrefix(uri, "data:image/png;base64,") {
			t.Errorf("data URI 形式ではありません: %q", uri)
		}
		if fake.callCount() != 1 {
			t.Errorf("呼び出し回数 = %d, 期待値 1", fake.callCount())
		}
	})

	t.Run("候補ゼロが3回続いてもレベル3で実画像を得ること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{
			zeroCandidateResponse(),
			zeroCandidateResponse(),
			zeroCandidateResponse(),
			imageResponse([]byte{9, 9, 9}, "image/png"),
		}}
		ir := NewImageRenderer(fake, "img-model", time.Second)

		var notices []string
		ir.Notify = func(msg string) { notices = append(notices, msg) }

		uri, err := ir.Render(context.Background(), renderInput("p2"))
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if strings.Contains(uri, PlaceholderDataURI(PlaceholderFiltered)) {
			t.Error("実画像ではなくプレースホルダーが返りました")
		}
		if fake.callCount() != 4 {
			t.Fatalf("ラダーの試行回数 = %d, 期待値 4（レベル0〜3）", fake.callCount())
		}
		if len(notices) != 3 {
			t.Errorf("フォールバック通知が %d 件でした（期待値 3）", len(notices))
		}
		// レベル3は参照画像を落とすこと
		if fake.imagePartCountOfCall(3) != 0 {
			t.Error("レベル3の呼び出しに参照画像が添付されています")
		}
		if fake.imagePartCountOfCall(0) == 0 {
			t.Error("レベル0の呼び出しに参照画像が添付されていません")
		}
	})

	t.Run("ラダーを使い切ったらフィルタ用プレースホルダーを返すこと", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{
			zeroCandidateResponse(),
			finishReasonResponse(genai.FinishReasonSafety),
			zeroCandidateResponse(),
			zeroCandidateResponse(),
		}}
		ir := NewImageRenderer(fake, "img-model", time.Second)

		uri, err := ir.Render(context.Background(), renderInput("p3"))
		if err != nil {
			t.Fatalf("ラダー消耗は非致命のはずです: %v", err)
		}
		if uri != PlaceholderDataURI(PlaceholderFiltered) {
			t.Error("フィルタ用プレースホルダーが返っていません")
		}
		if fake.callCount() != 4 {
			t.Errorf("各レベルは一度ずつ試されるべきです（実際 %d 回）", fake.callCount())
		}
	})

	t.Run("一般エラーはラダーを打ち切り失敗用プレースホルダーを返すこと", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{errorResponse(errors.New("connection reset"))}}
		ir := NewImageRenderer(fake, "img-model", time.Second)

		uri, err := ir.Render(context.Background(), renderInput("p4"))
		if err != nil {
			t.Fatalf("一般エラーは非致命のはずです: %v", err)
		}
		if uri != PlaceholderDataURI(PlaceholderFailed) {
			t.Error("失敗用プレースホルダーが返っていません")
		}
		if fake.callCount() != 1 {
			t.Errorf("一般エラー後にラダーが継続しています（%d 回）", fake.callCount())
		}
	})

	t.Run("認証エラーは認証用プレースホルダーとともに伝播すること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{errorResponse(errors.New("403 permission denied"))}}
		ir := NewImageRenderer(fake, "img-model", time.Second)

		uri, err := ir.Render(context.Background(), renderInput("p5"))
		if !envelope.IsAuth(err) {
			t.Fatalf("認証エラーの伝播を期待しましたが %v でした", err)
		}
		if uri != PlaceholderDataURI(PlaceholderAuth) {
			t.Error("認証用プレースホルダーが返っていません")
		}
	})

	t.Run("確定済みページの再レンダリングはモデルを呼ばないこと", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{imageResponse([]byte{5}, "image/png")}}
		ir := NewImageRenderer(fake, "img-model", time.Second)

		in := renderInput("p6")
		first, err := ir.Render(context.Background(), in)
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		second, err := ir.Render(context.Background(), in)
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if first != second {
			t.Error("キャッシュされた結果が一致しません")
		}
		if fake.callCount() != 1 {
			t.Errorf("再実行でモデルが呼ばれています（%d 回）", fake.callCount())
		}
	})
}

func TestInspectImageResponse_RefusalText(t *testing.T) {
	res := textResponse("I cannot generate this image because ...")
	_, err := inspectImageResponse(res.resp)
	if !envelope.IsSafety(err) {
		t.Errorf("拒否説明テキストは安全性ブロック扱いのはずです: %v", err)
	}
}

func TestPlaceholderDataURI_Distinguishable(t *testing.T) {
	kinds := []PlaceholderKind{PlaceholderFiltered, PlaceholderFailed, PlaceholderAuth}
	seen := make(map[string]PlaceholderKind)
	for _, k := range kinds {
		uri := PlaceholderDataURI(k)
		if !strings.HasPrefix(uri, "data:image/png;base64,") {
			t.Fatalf("プレースホルダーが data URI ではありません: %v", k)
		}
		if prev, dup := seen[uri]; dup {
			t.Errorf("カテゴリ %v と %v のプレースホルダーが区別できません", prev, k)
		}
		seen[uri] = k
	}
}

func TestScrubbedPromptReachesModel(t *testing.T) {
	// レベル2の呼び出しでは暴力語彙が置換済みであること
	fake := &fakeCaller{queue: []fakeResult{
		zeroCandidateResponse(),
		zeroCandidateResponse(),
		imageResponse([]byte{7}, "image/png"),
	}}
	ir := NewImageRenderer(fake, "img-model", time.Second)

	if _, err := ir.Render(context.Background(), renderInput("p7")); err != nil {
		t.Fatalf("想定外のエラー: %v", err)
	}
	level2Prompt := fake.promptOfCall(2)
	if strings.Contains(level2Prompt, "knife") {
		t.Error("レベル2のプロンプトに暴力語彙が残っています")
	}
	if !strings.Contains(level2Prompt, prompts.NeutralActionTerm) {
		t.Error("レベル2のプロンプトに中立語が含まれていません")
	}
}
