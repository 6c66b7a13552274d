package imgutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

// DefaultPreviewMaxEdge はプレビュー画像の長辺の既定値です。
const DefaultPreviewMaxEdge = 512

// Preview は画像データ（PNG, GIF, JPEG等）を長辺 maxEdge 以下に縮小し、JPEG で返します。
// 元画像が maxEdge 以下の場合は縮小せずに JPEG へ変換するだけです。
func Preview(data []byte, maxEdge, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("プレビュー用の画像デコードに失敗しました: %w", err)
	}
	if maxEdge <= 0 {
		maxEdge = DefaultPreviewMaxEdge
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, downscale(img, maxEdge), &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// downscale は縦横比を保ったまま最近傍法で縮小します。
func downscale(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}

	nw, nh := maxEdge, maxEdge
	if w >= h {
		nh = max(1, h*maxEdge/w)
	} else {
		nw = max(1, w*maxEdge/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := b.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			dst.Set(x, y, src.At(b.Min.X+x*w/nw, sy))
		}
	}
	return dst
}
