package generator

import (
	"context"
	"fmt"
	"log/slog"
)

// New は Options.Backend に応じて1つだけバックエンドを初期化します。
func New(ctx context.Context, opts Options) (PromptGenerator, error) {
	var (
		gen PromptGenerator
		err error
	)

	switch opts.Backend {
	case "", BackendGemini:
		client, cerr := NewGeminiClient(ctx, opts.APIKey, opts.HTTPClient)
		if cerr != nil {
			return nil, fmt.Errorf("Gemini クライアントの作成に失敗しました: %w", cerr)
		}
		gen, err = NewGeminiGenerator(client.Models, opts.Model, opts.Instruction)
	case BackendOpenAI:
		client, cerr := NewOpenAIClient(opts.APIKey, opts.HTTPClient)
		if cerr != nil {
			return nil, fmt.Errorf("OpenAI クライアントの作成に失敗しました: %w", cerr)
		}
		gen, err = NewOpenAIGenerator(client.Chat.Completions, opts.Model, opts.Instruction)
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "プロンプト生成バックエンドを初期化しました", "backend", gen.Name(), "model", gen.Model())
	return gen, nil
}
