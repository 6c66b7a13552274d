package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"

	"google.golang.org/genai"
)

// GeminiGenerator は Gemini のマルチモーダル生成でプロンプトを作るバックエンドです。
type GeminiGenerator struct {
	models      ContentGenerator
	model       string
	instruction string
}

var _ PromptGenerator = (*GeminiGenerator)(nil)

// NewGeminiClient は API キーで Gemini API 用の genai.Client を作成します。
func NewGeminiClient(ctx context.Context, apiKey string, httpClient *http.Client) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
}

// NewGeminiGenerator は GeminiGenerator を初期化します。model と instruction が空なら既定値を使います。
func NewGeminiGenerator(models ContentGenerator, model, instruction string) (*GeminiGenerator, error) {
	if models == nil {
		return nil, fmt.Errorf("models (ContentGenerator) is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if instruction == "" {
		instruction = DefaultInstruction
	}
	return &GeminiGenerator{
		models:      models,
		model:       strings.TrimPrefix(model, "models/"),
		instruction: instruction,
	}, nil
}

func (g *GeminiGenerator) Name() string { return BackendGemini }

func (g *GeminiGenerator) Model() string { return g.model }

// GeneratePrompt は画像パーツと指示文パーツを1つのユーザーコンテンツにまとめて送信します。
func (g *GeminiGenerator) GeneratePrompt(ctx context.Context, img domain.EncodedImage) (string, error) {
	data, err := imgutil.Decode(img)
	if err != nil {
		return "", fmt.Errorf("画像ペイロードが不正です: %w", err)
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: img.MimeType, Data: data}},
		{Text: g.instruction},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	slog.DebugContext(ctx, "Gemini にプロンプト生成をリクエストします", "model", g.model, "mime_type", img.MimeType, "bytes", len(data))
	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	return parseText(resp)
}

// parseText は最初の候補からテキストパーツを連結して返します。
// テキストが無く、安全フィルター等で異常終了している場合はエラーにします。
func parseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("request was blocked (BlockReason: %s)", resp.PromptFeedback.BlockReason)
		}
		return "", nil
	}

	// 最初の候補 (Candidate) のみを利用する。
	candidate := resp.Candidates[0]

	var b strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	if b.Len() > 0 {
		return b.String(), nil
	}

	switch candidate.FinishReason {
	case "", genai.FinishReasonUnspecified, genai.FinishReasonStop:
	default:
		return "", fmt.Errorf("generation stopped abnormally (FinishReason: %s)", candidate.FinishReason)
	}
	return "", nil
}
