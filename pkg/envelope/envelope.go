// Package envelope は AI モデル呼び出しを包む安全装置です。
// ハードタイムアウトとの競争と、失敗の構造化分類（認証・安全性ブロック・
// タイムアウト・一般）を提供します。分類は失敗発生点で一度だけ行い、
// 下流ではメッセージ文字列を再解釈しないのだ。
package envelope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind は分類済みエラーの区分です。
type Kind int

const (
	KindGeneric Kind = iota // ログに残し、呼び出し側のデフォルト値で継続する
	KindAuth                // 常に資格情報の再入力フローへエスカレーションする
	KindSafety              // 画像生成ではフォールバックラダーを駆動する
	KindTimeout             // 期限超過。原則として一般エラーと同じ扱い
)

// String は Kind のログ表示名を返します。
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindSafety:
		return "safety_block"
	case KindTimeout:
		return "timeout"
	default:
		return "generic"
	}
}

// Error は Kind タグ付きのエラーです。
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewSafety は構造的に検知した安全性ブロック（画像なし応答、異常な
// finish reason 等）を分類済みエラーとして包みます。
func NewSafety(format string, args ...any) *Error {
	return &Error{Kind: KindSafety, Err: fmt.Errorf(format, args...)}
}

// NewGeneric は想定外の応答構造などを一般エラーとして包みます。
func NewGeneric(format string, args ...any) *Error {
	return &Error{Kind: KindGeneric, Err: fmt.Errorf(format, args...)}
}

// KindOf はエラーの分類タグを取り出します。未分類のエラーは KindGeneric です。
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindGeneric
}

// IsAuth は資格情報エラーかどうかの短縮形なのだ。
func IsAuth(err error) bool { return err != nil && KindOf(err) == KindAuth }

// IsSafety は安全性ブロックかどうかの短縮形なのだ。
func IsSafety(err error) bool { return err != nil && KindOf(err) == KindSafety }

var authPatterns = []string{
	"api key",
	"api_key",
	"permission",
	"unauthorized",
	"unauthenticated",
	"credential",
	"401",
	"403",
}

var safetyPatterns = []string{
	"safety",
	"blocked",
	"block_reason",
	"prohibited",
	"refus", // refuse / refusal
	"harm",
}

// Classify は生のエラーを一度だけ検査し、Kind タグを付けて返します。
// すでに分類済みのエラーはそのまま返すのだ。
// 優先順位: 認証 > タイムアウト > 安全性 > 一般。
// タイムアウトでもメッセージが認証系なら認証として扱います（再試行しても無駄なため）。
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	msg := strings.ToLower(err.Error())
	for _, p := range authPatterns {
		if strings.Contains(msg, p) {
			return &Error{Kind: KindAuth, Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") {
		return &Error{Kind: KindTimeout, Err: err}
	}
	for _, p := range safetyPatterns {
		if strings.Contains(msg, p) {
			return &Error{Kind: KindSafety, Err: err}
		}
	}
	return &Error{Kind: KindGeneric, Err: err}
}

// Run は op をハードタイムアウトと競争させて実行します。
// 期限が先に来た場合は KindTimeout の分類済みエラーを返し、
// 遅れて到着した結果は捨てられます（op 側のゴルーチンはバッファ付き
// チャネルに書き込んで終了するため漏れないのだ）。
func Run[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)

	go func() {
		val, err := op(opCtx)
		ch <- result{val: val, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return zero, Classify(res.err)
		}
		return res.val, nil
	case <-opCtx.Done():
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return zero, &Error{Kind: KindTimeout, Err: fmt.Errorf("モデル呼び出しが %s の期限を超過しました: %w", timeout, opCtx.Err())}
		}
		return zero, Classify(opCtx.Err())
	}
}
