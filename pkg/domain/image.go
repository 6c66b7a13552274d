package domain

import "strings"

// UploadedImage はユーザーが選択した画像ファイルの生データです。
// 生成後は変更されず、リセットや新しいアップロードで破棄されます。
type UploadedImage struct {
	Data     []byte
	MimeType string
}

// EncodedImage は API リクエストに埋め込むための base64 テキストと MIME タイプです。
// UploadedImage から決定的に導出されます。
type EncodedImage struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
}

// DataURL は data URL 形式 (data:<mime>;base64,<payload>) を返します。
func (e EncodedImage) DataURL() string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(e.MimeType) + len(e.Base64))
	b.WriteString("data:")
	b.WriteString(e.MimeType)
	b.WriteString(";base64,")
	b.WriteString(e.Base64)
	return b.String()
}

// GenerationResult は1回の生成試行の結果です。
// Success(プロンプト) か Failure(メッセージ) のどちらか一方だけを保持します。
type GenerationResult struct {
	Success bool   `json:"success"`
	Prompt  string `json:"prompt,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewSuccess は成功結果を作成します。
func NewSuccess(prompt string) GenerationResult {
	return GenerationResult{Success: true, Prompt: prompt}
}

// NewFailure は失敗結果を作成します。
func NewFailure(message string) GenerationResult {
	return GenerationResult{Message: message}
}

// IsSuccess は成功結果かどうかを返します。
func (r GenerationResult) IsSuccess() bool {
	return r.Success
}
