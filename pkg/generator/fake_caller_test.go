package generator

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/genai"
)

// fakeResult はフェイククライアントが順番に返す応答なのだ。
type fakeResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

// fakeCaller は adapters.ModelCaller のテスト用実装です。
// キューに積まれた応答を先頭から返し、全呼び出しを記録します。
type fakeCaller struct {
	mu      sync.Mutex
	queue   []fakeResult
	calls   []fakeCallRecord
}

type fakeCallRecord struct {
	model    string
	contents []*genai.Content
	cfg      *genai.GenerateContentConfig
}

func (f *fakeCaller) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fakeCallRecord{model: model, contents: contents, cfg: cfg})
	if len(f.queue) == 0 {
		return nil, errors.New("フェイクの応答キューが空です")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.resp, next.err
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCaller) promptOfCall(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.calls) || len(f.calls[i].contents) == 0 {
		return ""
	}
	var out string
	for _, part := range f.calls[i].contents[0].Parts {
		if part != nil {
			out += part.Text
		}
	}
	return out
}

func (f *fakeCaller) imagePartCountOfCall(i int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.calls) {
		return 0
	}
	n := 0
	for _, c := range f.calls[i].contents {
		for _, part := range c.Parts {
			if part != nil && part.InlineData != nil {
				n++
			}
		}
	}
	return n
}

// --- 応答の組み立てヘルパー ---

func textResponse(text string) fakeResult {
	return fakeResult{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}}
}

func imageResponse(data []byte, mime string) fakeResult {
	return fakeResult{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: data, MIMEType: mime}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
	}}
}

func zeroCandidateResponse() fakeResult {
	return fakeResult{resp: &genai.GenerateContentResponse{}}
}

func finishReasonResponse(reason genai.FinishReason) fakeResult {
	return fakeResult{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: reason}},
	}}
}

func errorResponse(err error) fakeResult {
	return fakeResult{err: err}
}
