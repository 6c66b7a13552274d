package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator は OpenAI のチャット補完 (画像入力) でプロンプトを作るバックエンドです。
type OpenAIGenerator struct {
	completions ChatCompleter
	model       string
	instruction string
}

var _ PromptGenerator = (*OpenAIGenerator)(nil)

// NewOpenAIClient は API キーで openai.Client を作成します。
func NewOpenAIClient(apiKey string, httpClient *http.Client) (*oagc.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return oagc.NewClient(opts...), nil
}

// NewOpenAIGenerator は OpenAIGenerator を初期化します。
func NewOpenAIGenerator(completions ChatCompleter, model, instruction string) (*OpenAIGenerator, error) {
	if completions == nil {
		return nil, fmt.Errorf("completions (ChatCompleter) is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if instruction == "" {
		instruction = DefaultInstruction
	}
	return &OpenAIGenerator{
		completions: completions,
		model:       model,
		instruction: instruction,
	}, nil
}

func (o *OpenAIGenerator) Name() string { return BackendOpenAI }

func (o *OpenAIGenerator) Model() string { return o.model }

// GeneratePrompt は画像を data URL として送ります。base64 ペイロードはそのまま使えます。
func (o *OpenAIGenerator) GeneratePrompt(ctx context.Context, img domain.EncodedImage) (string, error) {
	params := oagc.ChatCompletionNewParams{
		Messages: oagc.F([]oagc.ChatCompletionMessageParamUnion{
			oagc.UserMessageParts(
				oagc.ImagePart(img.DataURL()),
				oagc.TextPart(o.instruction),
			),
		}),
		Model: oagc.F(oagc.ChatModel(o.model)),
	}

	slog.DebugContext(ctx, "OpenAI にプロンプト生成をリクエストします", "model", o.model, "mime_type", img.MimeType)
	resp, err := o.completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
