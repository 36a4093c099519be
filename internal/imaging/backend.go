package imaging

import "fmt"

// Limits bounds what a backend may produce and what it may decode.
type Limits struct {
	MaxWidth  int
	MaxHeight int
	// MaxPixels caps width*height of the source as declared in its header.
	MaxPixels int
}

// Backend decodes a source image into a Frame that is already flattened onto
// Background and bounded to MaxWidth x MaxHeight. Sources declaring more than
// MaxPixels are rejected with ErrTooManyPixels before any pixel is decoded.
type Backend interface {
	Prepare(data []byte, limits Limits) (Frame, error)
}

// Frame is a prepared image that can be encoded more than once. Close must
// be called on every path once the caller is done with it.
type Frame interface {
	Size() (width, height int)
	EncodeJPEG(quality int) ([]byte, error)
	Close()
}

// fitWithin returns the largest size no bigger than maxW x maxH that keeps
// the source aspect ratio. Sources that already fit are returned unchanged.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	return clamp(nw, 1, maxW), clamp(nh, 1, maxH)
}

func checkPixels(w, h, maxPixels int) error {
	if maxPixels <= 0 {
		return nil
	}
	if int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrTooManyPixels, w, h, maxPixels)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
