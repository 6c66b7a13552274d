package generator

import (
	"context"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// PromptGenerator は画像から生成AI向けのプロンプトを作る外部サービスの窓口です。
// 実装は生のテキストと通信エラーをそのまま返し、空レスポンスの判定は呼び出し側が行います。
type PromptGenerator interface {
	// Name はバックエンド名 ("gemini", "openai") を返します。
	Name() string
	// Model は使用するモデル名を返します。
	Model() string
	// GeneratePrompt は画像と固定の指示文を1回のリクエストで送信し、応答テキストを返します。
	GeneratePrompt(ctx context.Context, img domain.EncodedImage) (string, error)
}

// ContentGenerator は genai.Client.Models のうち、このパッケージが使うメソッドだけを抜き出したものです。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ChatCompleter は openai.Client.Chat.Completions のうち、このパッケージが使うメソッドです。
type ChatCompleter interface {
	New(ctx context.Context, body oagc.ChatCompletionNewParams, opts ...option.RequestOption) (*oagc.ChatCompletion, error)
}
