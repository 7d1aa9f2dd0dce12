package artifacts

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// Cover art is scaled to fit inside this box, keeping its aspect ratio.
const (
	CoverWidth  = 600
	CoverHeight = 800

	MaxArtworkBytes = 8 << 20
)

var ErrArtworkTooLarge = errors.New("artwork too large")

// PutArtwork decodes an uploaded image, shrinks it to cover size and stores
// it re-encoded as WebP.
func (r *Registry) PutArtwork(name string, data []byte) (Blob, error) {
	if len(data) > MaxArtworkBytes {
		return Blob{}, ErrArtworkTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Blob{}, fmt.Errorf("failed to decode image: %w", err)
	}
	img = fitCover(img)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: 80}); err != nil {
		return Blob{}, fmt.Errorf("failed to encode image to WebP: %w", err)
	}
	return r.Put(webpName(name), "image/webp", buf.Bytes()), nil
}

// fitCover never upscales.
func fitCover(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= CoverWidth && b.Dy() <= CoverHeight {
		return img
	}
	return resize.Thumbnail(CoverWidth, CoverHeight, img, resize.Lanczos3)
}

func webpName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if name == "" {
		name = "artwork"
	}
	return name + ".webp"
}
