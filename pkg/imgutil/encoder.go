package imgutil

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// EncodeResult は EncodeAsync の完了通知です。
type EncodeResult struct {
	Image domain.EncodedImage
	Err   error
}

// Encode は r の内容をすべて読み込み、標準 base64 テキストと MIME タイプの組に変換します。
// 読み込みに失敗した場合は *domain.EncodingError を返します。サイズ上限はありません。
func Encode(r io.Reader, mimeType string) (domain.EncodedImage, error) {
	if r == nil {
		return domain.EncodedImage{}, &domain.EncodingError{Err: io.ErrUnexpectedEOF}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.EncodedImage{}, &domain.EncodingError{Err: err}
	}
	return EncodeBytes(domain.UploadedImage{Data: data, MimeType: DetectMIMEType(data, mimeType)}), nil
}

// EncodeBytes はバイト列に対する決定的な全域関数です。
func EncodeBytes(img domain.UploadedImage) domain.EncodedImage {
	return domain.EncodedImage{
		Base64:   base64.StdEncoding.EncodeToString(img.Data),
		MimeType: img.MimeType,
	}
}

// Decode は EncodedImage を元のバイト列に戻します。
func Decode(img domain.EncodedImage) ([]byte, error) {
	return base64.StdEncoding.DecodeString(img.Base64)
}

// EncodeAsync は呼び出し元をブロックせずにエンコードを行い、結果を1件だけ送信してチャネルを閉じます。
// ctx がキャンセルされた場合は ctx.Err() をラップした EncodingError を返します。
func EncodeAsync(ctx context.Context, r io.Reader, mimeType string) <-chan EncodeResult {
	out := make(chan EncodeResult, 1)
	go func() {
		defer close(out)

		done := make(chan EncodeResult, 1)
		go func() {
			img, err := Encode(r, mimeType)
			done <- EncodeResult{Image: img, Err: err}
		}()

		select {
		case <-ctx.Done():
			out <- EncodeResult{Err: &domain.EncodingError{Err: ctx.Err()}}
		case res := <-done:
			out <- res
		}
	}()
	return out
}

// DetectMIMEType は申告された MIME タイプを優先し、空の場合のみ内容から推定します。
func DetectMIMEType(data []byte, declared string) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	return http.DetectContentType(data)
}

// IsImage は MIME タイプが画像を示すかどうかを返します。
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
