package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type stdlibBackend struct{}

func (stdlibBackend) Prepare(data []byte, limits Limits) (Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, limits.MaxPixels); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrDecode, errors.New("source image has invalid dimensions"))
	}

	w, h := fitWithin(srcW, srcH, limits.MaxWidth, limits.MaxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	if w == srcW && h == srcH {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	return &stdlibFrame{img: dst}, nil
}

type stdlibFrame struct {
	img *image.RGBA
}

func (f *stdlibFrame) Size() (int, int) {
	if f.img == nil {
		return 0, 0
	}
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

// EncodeJPEG uses the standard encoder, which always writes the default
// Huffman tables; optimized coding is only available on the libvips backend.
func (f *stdlibFrame) EncodeJPEG(quality int) ([]byte, error) {
	if f.img == nil {
		return nil, errors.New("frame is closed")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *stdlibFrame) Close() {
	f.img = nil
}
