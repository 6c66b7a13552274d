package imgutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingReader は途中で I/O エラーを返すリーダーなのだ。
type failingReader struct {
	err error
}

func (r *failingReader) Read(p []byte) (int, error) { return 0, r.err }

// blockingReader は release が閉じられるまで読み込みをブロックするのだ。
type blockingReader struct {
	release chan struct{}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.release
	return 0, io.EOF
}

func TestEncode(t *testing.T) {
	t.Run("10KBのPNGはimage/pngとしてエンコードされるのだ", func(t *testing.T) {
		data := createSizedPNG(t, 10*1024)

		img, err := Encode(bytes.NewReader(data), "image/png")

		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType)
		assert.NotEmpty(t, img.Base64)
	})

	t.Run("同じバイト列は常に同じ結果になる", func(t *testing.T) {
		data := []byte("\x89PNG\r\n\x1a\nsome-bytes")

		a, err := Encode(bytes.NewReader(data), "image/png")
		require.NoError(t, err)
		b, err := Encode(bytes.NewReader(data), "image/png")
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("デコードすると元のバイト列に戻る", func(t *testing.T) {
		inputs := [][]byte{
			{},
			{0x00},
			{0xFF, 0xD8, 0xFF, 0xE0},
			bytes.Repeat([]byte{0x01, 0x02, 0x03}, 1000),
			createSizedPNG(t, 2048),
		}
		for _, in := range inputs {
			img, err := Encode(bytes.NewReader(in), "image/jpeg")
			require.NoError(t, err)

			out, err := Decode(img)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(in, out), "round-trip mismatch for %d bytes", len(in))
		}
	})

	t.Run("読み込みエラーはEncodingErrorになる", func(t *testing.T) {
		ioErr := errors.New("disk unplugged")

		_, err := Encode(&failingReader{err: ioErr}, "image/png")

		var encErr *domain.EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.ErrorIs(t, err, ioErr)
		assert.Equal(t, "failed to read image file", encErr.UserMessage())
	})

	t.Run("nilリーダーもEncodingErrorになる", func(t *testing.T) {
		_, err := Encode(nil, "image/png")
		var encErr *domain.EncodingError
		assert.ErrorAs(t, err, &encErr)
	})
}

func TestEncodeAsync(t *testing.T) {
	t.Run("完了通知で結果を受け取れるのだ", func(t *testing.T) {
		data := []byte("async-bytes")

		res, ok := <-EncodeAsync(context.Background(), bytes.NewReader(data), "image/webp")

		require.True(t, ok)
		require.NoError(t, res.Err)
		assert.Equal(t, EncodeBytes(domain.UploadedImage{Data: data, MimeType: "image/webp"}), res.Image)
	})

	t.Run("キャンセルされたらEncodingErrorを返す", func(t *testing.T) {
		reader := &blockingReader{release: make(chan struct{})}
		defer close(reader.release)

		ctx, cancel := context.WithCancel(context.Background())
		ch := EncodeAsync(ctx, reader, "image/png")
		cancel()

		select {
		case res := <-ch:
			var encErr *domain.EncodingError
			require.ErrorAs(t, res.Err, &encErr)
			assert.ErrorIs(t, res.Err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("EncodeAsync did not complete after cancellation")
		}
	})
}

func TestDetectMIMEType(t *testing.T) {
	png := createSizedPNG(t, 0)

	tests := []struct {
		name     string
		data     []byte
		declared string
		want     string
	}{
		{"申告があればそのまま使う", png, "image/x-custom", "image/x-custom"},
		{"空ならPNGを推定する", png, "", "image/png"},
		{"空白だけの申告も空として扱う", png, "  ", "image/png"},
		{"画像でなければtext/plain", []byte("hello"), "", "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIMEType(tt.data, tt.declared))
		})
	}

	assert.True(t, IsImage("image/png"))
	assert.False(t, IsImage("application/pdf"))
}
