package session

import (
	"testing"

	"github.com/shouni/go-comic-studio/pkg/domain"
)

func testSettings() domain.Settings {
	return domain.Settings{Genre: "Fantasy", Tone: "epic", Language: "Japanese", Fidelity: 2}
}

func heroPersona() *domain.Persona {
	return &domain.Persona{Name: "アキラ", Image: []byte{1}, MimeType: "image/png", Description: "a young swordsman"}
}

func TestSession_CommitImage(t *testing.T) {
	s := NewSession(testSettings(), heroPersona(), nil, 10, nil)
	page := s.EnsurePage(1, domain.PageTypeStory, false)

	t.Run("画像コミットで読み込みフラグが下りること", func(t *testing.T) {
		s.CommitImage(page.ID, "data:image/png;base64,AAAA")
		got := s.Pages()[0]
		if got.IsLoading {
			t.Error("コミット後も IsLoading=true のままです")
		}
		if got.ImageURI == "" {
			t.Error("画像URIが設定されていません")
		}
	})

	t.Run("遅延到着した二重コミットは無視されること", func(t *testing.T) {
		s.CommitImage(page.ID, "data:image/png;base64,BBBB")
		if got := s.Pages()[0].ImageURI; got != "data:image/png;base64,AAAA" {
			t.Errorf("確定済み画像が上書きされました: %q", got)
		}
	})
}

func TestSession_History(t *testing.T) {
	s := NewSession(testSettings(), heroPersona(), nil, 10, nil)

	// わざと降順で作って、履歴が昇順に並ぶことを確かめるのだ
	p3 := s.EnsurePage(3, domain.PageTypeStory, false)
	p1 := s.EnsurePage(1, domain.PageTypeStory, false)
	cover := s.EnsurePage(0, domain.PageTypeCover, false)

	s.CommitBeat(p3.ID, domain.Beat{Caption: "三", Scene: "s3"})
	s.CommitBeat(p1.ID, domain.Beat{Caption: "一", Scene: "s1"})
	s.CommitBeat(cover.ID, domain.Beat{Caption: "表紙", Scene: "cover"})

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("履歴は本編のみの2件のはずですが %d 件でした", len(history))
	}
	if history[0].Page != 1 || history[1].Page != 3 {
		t.Errorf("履歴がページ番号昇順になっていません: %+v", history)
	}
}

func TestSession_InflightGuard(t *testing.T) {
	s := NewSession(testSettings(), heroPersona(), nil, 10, nil)

	if !s.MarkInflight(5) {
		t.Fatal("最初の登録が拒否されました")
	}
	if s.MarkInflight(5) {
		t.Error("二重登録が許可されています")
	}
	s.ClearInflight(5)
	if !s.MarkInflight(5) {
		t.Error("解除後の再登録が拒否されました")
	}
}

func TestSession_ResetForNextIssue(t *testing.T) {
	s := NewSession(testSettings(), heroPersona(), nil, 10, nil)
	p := s.EnsurePage(1, domain.PageTypeStory, false)
	s.CommitBeat(p.ID, domain.Beat{Caption: "一", Scene: "s"})
	s.MarkInflight(2)

	s.ResetForNextIssue("The hero found the hidden door.")

	if s.Issue() != 2 {
		t.Errorf("号数 = %d, 期待値 2", s.Issue())
	}
	if len(s.Pages()) != 0 {
		t.Error("リセット直後にページ集合が空になっていません")
	}
	if s.InflightCount() != 0 {
		t.Error("リセット直後に実行中ガードが空になっていません")
	}
	if s.Summary() == "" {
		t.Error("あらすじが持ち越されていません")
	}

	// 2号目のまとめは段落として追記されること
	s.ResetForNextIssue("The door led to a buried city.")
	if s.Summary() != "The hero found the hidden door.\n\nThe door led to a buried city." {
		t.Errorf("あらすじの追記形式が想定と異なります: %q", s.Summary())
	}
}

func TestSession_FullReset(t *testing.T) {
	s := NewSession(testSettings(), heroPersona(), nil, 10, nil)
	s.ResetForNextIssue("recap")
	s.FullReset()

	if s.Issue() != 1 || s.Summary() != "" {
		t.Error("完全リセット後も状態が残っています")
	}
}

func TestSession_SignalAuthOnce(t *testing.T) {
	notified := 0
	s := NewSession(testSettings(), heroPersona(), nil, 10, func() { notified++ })

	// どのコンポーネントから何度検知されても、通知は一度きりなのだ
	s.SignalAuth()
	s.SignalAuth()
	s.SignalAuth()
	if notified != 1 {
		t.Errorf("認証通知が %d 回発火しました（期待値 1）", notified)
	}

	// 再入力後は次の失敗で再度通知されること
	s.ResetAuthLatch()
	s.SignalAuth()
	if notified != 2 {
		t.Errorf("ラッチ解除後の通知が発火していません（%d 回）", notified)
	}
}

func TestFeed_Cap(t *testing.T) {
	f := NewFeed(3)
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		f.Add(m)
	}
	entries := f.Entries()
	if len(entries) != 3 {
		t.Fatalf("フィードの保持件数 = %d, 期待値 3", len(entries))
	}
	if entries[0].Message != "c" || entries[2].Message != "e" {
		t.Errorf("古い項目の破棄順が想定と異なります: %+v", entries)
	}
}
