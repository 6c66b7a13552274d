package server

import (
	"context"
	"sync/atomic"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// mockGenerator は PromptGenerator のテスト用モックなのだ。
type mockGenerator struct {
	calls        atomic.Int32
	generateFunc func(ctx context.Context, img domain.EncodedImage) (string, error)
}

func (m *mockGenerator) Name() string  { return "mock" }
func (m *mockGenerator) Model() string { return "mock-model" }

func (m *mockGenerator) GeneratePrompt(ctx context.Context, img domain.EncodedImage) (string, error) {
	m.calls.Add(1)
	if m.generateFunc != nil {
		return m.generateFunc(ctx, img)
	}
	return "", nil
}
