package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shouni/go-comic-studio/pkg/domain"
	"github.com/shouni/go-comic-studio/pkg/envelope"
	"github.com/shouni/go-comic-studio/pkg/prompts"
)

func storyInput(page int, decision bool) BeatInput {
	return BeatInput{
		PageNumber: page,
		MaxPage:    19,
		IsDecision: decision,
		Settings:   domain.Settings{Genre: "Fantasy", Tone: "epic", Language: "Japanese"},
		Issue:      1,
		HeroName:   "アキラ",
	}
}

func TestBeatGenerator_Generate(t *testing.T) {
	t.Run("コードフェンス付きJSONを修復してパースできること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{textResponse("```json\n" +
			`{"caption": "Akira: 「出発の朝」", "dialogue": "\"行くぞ\"", "scene": "a boy leaves his village at dawn", "focus_char": "Hero", "choices": ["余計な選択肢"]}` +
			"\n```")}}
		bg := NewBeatGenerator(fake, "test-model", time.Second)

		beat, err := bg.Generate(context.Background(), storyInput(2, false))
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if beat.Caption != "出発の朝" {
			t.Errorf("話者ラベルと引用符が剥がれていません: %q", beat.Caption)
		}
		if beat.Dialogue != "行くぞ" {
			t.Errorf("セリフの引用符が剥がれていません: %q", beat.Dialogue)
		}
		if beat.FocusChar != domain.FocusHero {
			t.Errorf("focus_char が正規化されていません: %q", beat.FocusChar)
		}
		if len(beat.Choices) != 0 {
			t.Error("非選択ページの choices が空になっていません")
		}
	})

	t.Run("選択ページで選択肢が不足したら既定値を補充するのだ", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{textResponse(
			`{"caption": "分岐", "scene": "a crossroads", "focus_char": "hero", "choices": ["片方だけ"]}`)}}
		bg := NewBeatGenerator(fake, "test-model", time.Second)

		beat, err := bg.Generate(context.Background(), storyInput(4, true))
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if len(beat.Choices) < 2 {
			t.Fatalf("選択肢が %d 件しかありません（最低2件）", len(beat.Choices))
		}
		if beat.Choices[0] != "片方だけ" {
			t.Error("モデル由来の選択肢が先頭に保持されていません")
		}
	})

	t.Run("scene が空なら合成デフォルトを割り当てること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{textResponse(
			`{"caption": "沈黙", "scene": "", "focus_char": "hero", "choices": []}`)}}
		bg := NewBeatGenerator(fake, "test-model", time.Second)

		beat, err := bg.Generate(context.Background(), storyInput(5, false))
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if beat.Scene == "" {
			t.Error("scene の不変条件（非空）が破られています")
		}
	})

	t.Run("一般エラーはデフォルトビートで継続すること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{errorResponse(errors.New("connection reset"))}}
		bg := NewBeatGenerator(fake, "test-model", time.Second)

		beat, err := bg.Generate(context.Background(), storyInput(4, true))
		if err != nil {
			t.Fatalf("一般エラーが伝播しています: %v", err)
		}
		if beat.Scene == "" {
			t.Error("デフォルトビートの scene が空です")
		}
		if len(beat.Choices) < 2 {
			t.Error("選択ページのデフォルトビートに選択肢がありません")
		}
	})

	t.Run("認証エラーだけは伝播すること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{errorResponse(errors.New("API key not valid"))}}
		bg := NewBeatGenerator(fake, "test-model", time.Second)

		_, err := bg.Generate(context.Background(), storyInput(2, false))
		if !envelope.IsAuth(err) {
			t.Fatalf("認証エラーの伝播を期待しましたが %v でした", err)
		}
	})

	t.Run("相棒バイアスが当選したらフォーカスを強制すること", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{textResponse(
			`{"caption": "相棒の回", "scene": "the co-star takes the lead", "focus_char": "hero", "choices": []}`)}}
		bg := NewBeatGenerator(fake, "test-model", time.Second)
		bg.randFloat = func() float64 { return 0.0 } // 必ず当選

		in := storyInput(6, false)
		in.CoStarName = "レン"
		in.LastFocus = domain.FocusHero

		beat, err := bg.Generate(context.Background(), in)
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if beat.FocusChar != domain.FocusFriend {
			t.Errorf("強制フォーカスが適用されていません: %q", beat.FocusChar)
		}
	})

	t.Run("直前が相棒フォーカスなら抽選しないこと", func(t *testing.T) {
		fake := &fakeCaller{queue: []fakeResult{textResponse(
			`{"caption": "通常回", "scene": "back to the hero", "focus_char": "hero", "choices": []}`)}}
		bg := NewBeatGenerator(fake, "test-model", time.Second)
		bg.randFloat = func() float64 { return 0.0 }

		in := storyInput(7, false)
		in.CoStarName = "レン"
		in.LastFocus = domain.FocusFriend

		beat, err := bg.Generate(context.Background(), in)
		if err != nil {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if beat.FocusChar != domain.FocusHero {
			t.Errorf("連続で相棒フォーカスが強制されています: %q", beat.FocusChar)
		}
	})
}

func TestRepairBeat_DefaultChoices(t *testing.T) {
	beat := domain.Beat{Caption: "c", Scene: "s", Choices: []string{"  ", ""}}
	repairBeat(&beat, storyInput(4, true))

	if len(beat.Choices) != 2 {
		t.Fatalf("空白のみの選択肢が除去されて既定値2件になるべきですが %d 件でした", len(beat.Choices))
	}
	if beat.Choices[0] != prompts.DefaultChoiceA || beat.Choices[1] != prompts.DefaultChoiceB {
		t.Errorf("既定選択肢が注入されていません: %v", beat.Choices)
	}
}
