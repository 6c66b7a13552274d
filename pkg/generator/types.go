package generator

import "net/http"

const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"

	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// DefaultInstruction は画像に添えて送る固定の指示文です。
const DefaultInstruction = `Describe this image in detail. Focus on the style, composition, colors, and mood. The description should be a creative and descriptive prompt suitable for an AI image generation model like Midjourney or DALL-E. Start with a short, punchy summary, then elaborate on the details.`

// Options はバックエンド選択と接続設定です。
type Options struct {
	Backend     string
	APIKey      string
	Model       string
	Instruction string
	HTTPClient  *http.Client // nil の場合は SDK の既定クライアント
}
