package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP thumbnails
)

// ImageService prepares cover art for embedding in audio tags.
//
// Source thumbnails come in JPEG, PNG or WebP and are usually 16:9 video
// frames. CoverArt crops them to a centred square, scales them down and
// re-encodes as JPEG, which every tag reader understands.
//
// Example usage:
//
//	svc := NewImageService()
//	art, err := svc.CoverArt(ctx, thumbnailBytes, 600)
type ImageService struct {
	quality int
}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{quality: 90}
}

// CoverArt returns a square JPEG no larger than maxSize×maxSize.
// maxSize <= 0 keeps the cropped size.
func (s *ImageService) CoverArt(ctx context.Context, data []byte, maxSize int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	src := centerSquare(img.Bounds())
	side := src.Dx()
	if maxSize > 0 && side > maxSize {
		side = maxSize
	}

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// centerSquare returns the largest square centred in r.
func centerSquare(r image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	if w == h {
		return r
	}
	if w > h {
		off := (w - h) / 2
		return image.Rect(r.Min.X+off, r.Min.Y, r.Min.X+off+h, r.Max.Y)
	}
	off := (h - w) / 2
	return image.Rect(r.Min.X, r.Min.Y+off, r.Max.X, r.Min.Y+off+w)
}
