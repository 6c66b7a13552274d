package generator

import (
	"context"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// --- Mocks ---

// mockContentGenerator は ContentGenerator (genai.Models) のテスト用モックなのだ。
type mockContentGenerator struct {
	calls        int
	generateFunc func(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

func (m *mockContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(ctx, model, contents)
	}
	return nil, nil
}

// mockChatCompleter は ChatCompleter のテスト用モックなのだ。
type mockChatCompleter struct {
	lastParams oagc.ChatCompletionNewParams
	newFunc    func(ctx context.Context, body oagc.ChatCompletionNewParams) (*oagc.ChatCompletion, error)
}

func (m *mockChatCompleter) New(ctx context.Context, body oagc.ChatCompletionNewParams, opts ...option.RequestOption) (*oagc.ChatCompletion, error) {
	m.lastParams = body
	if m.newFunc != nil {
		return m.newFunc(ctx, body)
	}
	return nil, nil
}

// textResponse は1候補・テキストのみのレスポンスを作るヘルパーなのだ。
func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, &genai.Part{Text: t})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: parts},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}
