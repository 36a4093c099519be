//go:build govips && cgo

package imaging

import (
	"errors"
	"fmt"
	"math"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsBackend struct{}

func (govipsBackend) Prepare(data []byte, limits Limits) (Frame, error) {
	// libvips reads the header eagerly and pixels on demand, so the size
	// check below runs before any pixel work.
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkPixels(img.Width(), img.Height(), limits.MaxPixels); err != nil {
		img.Close()
		return nil, err
	}

	if err := prepareGovipsImage(img, limits.MaxWidth, limits.MaxHeight); err != nil {
		img.Close()
		return nil, err
	}
	return &govipsFrame{img: img}, nil
}

func prepareGovipsImage(img *vips.ImageRef, maxWidth, maxHeight int) error {
	if img.Width() <= 0 || img.Height() <= 0 {
		return fmt.Errorf("%w: source image has invalid dimensions", ErrDecode)
	}

	if img.Interpretation() != vips.InterpretationSRGB {
		if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
			return fmt.Errorf("%w: convert to srgb: %v", ErrEncode, err)
		}
	}

	if img.HasAlpha() {
		bg := &vips.Color{R: Background.R, G: Background.G, B: Background.B}
		if err := img.Flatten(bg); err != nil {
			return fmt.Errorf("%w: flatten alpha: %v", ErrEncode, err)
		}
	}

	w, h := img.Width(), img.Height()
	if w <= maxWidth && h <= maxHeight {
		return nil
	}

	scale := math.Min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("%w: resize image: %v", ErrEncode, err)
	}
	return nil
}

type govipsFrame struct {
	img *vips.ImageRef
}

func (f *govipsFrame) Size() (int, int) {
	if f.img == nil {
		return 0, 0
	}
	return f.img.Width(), f.img.Height()
}

func (f *govipsFrame) EncodeJPEG(quality int) ([]byte, error) {
	if f.img == nil {
		return nil, errors.New("frame is closed")
	}

	params := vips.NewJpegExportParams()
	params.Quality = quality
	params.OptimizeCoding = true
	params.StripMetadata = true
	data, _, err := f.img.ExportJpeg(params)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return data, nil
}

func (f *govipsFrame) Close() {
	if f.img == nil {
		return
	}
	f.img.Close()
	f.img = nil
}
