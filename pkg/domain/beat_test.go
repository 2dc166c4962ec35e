package domain

import "testing"

func TestNormalizeFocus(t *testing.T) {
	cases := []struct {
		raw  string
		want FocusChar
	}{
		{"hero", FocusHero},
		{"friend", FocusFriend},
		{"other", FocusOther},
		{" Friend ", FocusFriend},
		{"HERO", FocusHero},
		{"narrator", FocusHero},
		{"", FocusHero},
	}

	for _, c := range cases {
		if got := NormalizeFocus(c.raw); got != c.want {
			t.Errorf("NormalizeFocus(%q) = %q, 期待値 %q", c.raw, got, c.want)
		}
	}
}

func TestPage_Clone(t *testing.T) {
	t.Run("複製後にビートを書き換えても元に影響しないのだ", func(t *testing.T) {
		p := NewPage(4, PageTypeStory, true)
		p.Beat = &Beat{
			Caption: "分かれ道",
			Scene:   "a fork in a forest road",
			Choices: []string{"左へ", "右へ"},
		}

		cp := p.Clone()
		cp.Beat.Choices[0] = "書き換え"
		cp.Beat.Caption = "別物"

		if p.Beat.Choices[0] != "左へ" {
			t.Error("複製側の変更が元の選択肢に漏れています")
		}
		if p.Beat.Caption != "分かれ道" {
			t.Error("複製側の変更が元のキャプションに漏れています")
		}
	})

	t.Run("新規ページは読み込み中かつ識別子を持つこと", func(t *testing.T) {
		p := NewPage(0, PageTypeCover, false)
		if !p.IsLoading {
			t.Error("生成直後のページは IsLoading=true であるべきです")
		}
		if p.ID == "" {
			t.Error("ページ識別子が空です")
		}
	})
}

func TestPersona_HasImage(t *testing.T) {
	var nilPersona *Persona
	if nilPersona.HasImage() {
		t.Error("nil ペルソナが画像ありと判定されました")
	}

	p := &Persona{Description: "a tall swordsman"}
	if p.HasImage() {
		t.Error("画像なしペルソナが画像ありと判定されました")
	}

	p = p.Replace([]byte{0x89, 0x50}, "image/png")
	if !p.HasImage() {
		t.Error("Replace 後に画像ありと判定されませんでした")
	}
	if p.Description != "a tall swordsman" {
		t.Error("Replace がテキスト記述を引き継いでいません")
	}
}

func TestSettings_FidelityLevel(t *testing.T) {
	for raw, want := range map[int]int{0: 1, 1: 1, 2: 2, 3: 3, 7: 3, -1: 1} {
		if got := (Settings{Fidelity: raw}).FidelityLevel(); got != want {
			t.Errorf("Fidelity %d の丸め結果 = %d, 期待値 %d", raw, got, want)
		}
	}
}
