package imaging

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"path"
	"strings"
)

const (
	DefaultMaxSide        = 500
	DefaultMaxBytes       = 200 * 1024
	DefaultInitialQuality = 85
	DefaultFloorQuality   = 60
	// DefaultMaxPixels matches the decompression-bomb threshold common image
	// libraries use: about 89 megapixels.
	DefaultMaxPixels = 89_478_485

	OutcomeNormalized  = "normalized"
	OutcomePassthrough = "passthrough"

	derivedSuffix = "_compressed"
	derivedExt    = ".jpg"
)

var (
	ErrDecode = errors.New("decode source image")
	ErrEncode = errors.New("encode normalized image")
	// ErrTooManyPixels wraps ErrDecode so oversized sources pass through.
	ErrTooManyPixels = fmt.Errorf("%w: source declares too many pixels", ErrDecode)
)

// Background is the color transparent regions are composited onto before
// JPEG encoding.
var Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}

type Options struct {
	MaxWidth       int
	MaxHeight      int
	MaxBytes       int
	InitialQuality int
	FloorQuality   int
	MaxPixels      int
}

func DefaultOptions() Options {
	return Options{
		MaxWidth:       DefaultMaxSide,
		MaxHeight:      DefaultMaxSide,
		MaxBytes:       DefaultMaxBytes,
		InitialQuality: DefaultInitialQuality,
		FloorQuality:   DefaultFloorQuality,
		MaxPixels:      DefaultMaxPixels,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxWidth <= 0 {
		o.MaxWidth = def.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = def.MaxHeight
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = def.MaxBytes
	}
	if o.InitialQuality <= 0 || o.InitialQuality > 100 {
		o.InitialQuality = def.InitialQuality
	}
	if o.FloorQuality <= 0 || o.FloorQuality > o.InitialQuality {
		o.FloorQuality = min(def.FloorQuality, o.InitialQuality)
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = def.MaxPixels
	}
	return o
}

// Result is what Normalize hands back to the caller. When Normalized is
// false, Name and Data are the caller's original input and Fallback records
// why normalization was skipped.
type Result struct {
	Name           string
	Data           []byte
	Normalized     bool
	Width          int
	Height         int
	Quality        int
	FirstPassBytes int
	Passes         int
	Fallback       error
}

type Observer interface {
	ObserveNormalization(outcome string, quality, size int)
}

type Normalizer struct {
	backend  Backend
	opts     Options
	logger   *log.Logger
	observer Observer
}

func NewNormalizer(logger *log.Logger, opts Options, observer Observer) (*Normalizer, error) {
	backend, err := newBackend()
	if err != nil {
		return nil, fmt.Errorf("build image backend: %w", err)
	}
	return newNormalizerWithBackend(logger, opts, observer, backend), nil
}

func newNormalizerWithBackend(logger *log.Logger, opts Options, observer Observer, backend Backend) *Normalizer {
	return &Normalizer{
		backend:  backend,
		opts:     opts.withDefaults(),
		logger:   logger,
		observer: observer,
	}
}

func (n *Normalizer) Options() Options {
	return n.opts
}

// Normalize converts an uploaded image into a bounded JPEG. It never fails:
// undecodable input or encoder errors return the original name and bytes.
func (n *Normalizer) Normalize(name string, data []byte) Result {
	res, err := n.normalize(name, data)
	if err != nil {
		if n.logger != nil {
			n.logger.Printf("image normalization failed name=%s bytes=%d err=%v", name, len(data), err)
		}
		if n.observer != nil {
			n.observer.ObserveNormalization(OutcomePassthrough, 0, len(data))
		}
		return Result{Name: name, Data: data, Fallback: err}
	}

	if n.observer != nil {
		n.observer.ObserveNormalization(OutcomeNormalized, res.Quality, len(res.Data))
	}
	return res
}

func (n *Normalizer) normalize(name string, data []byte) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrEncode, r)
		}
	}()

	frame, err := n.backend.Prepare(data, Limits{
		MaxWidth:  n.opts.MaxWidth,
		MaxHeight: n.opts.MaxHeight,
		MaxPixels: n.opts.MaxPixels,
	})
	if err != nil {
		return Result{}, err
	}
	defer frame.Close()

	quality := n.opts.InitialQuality
	out, err := frame.EncodeJPEG(quality)
	if err != nil {
		return Result{}, fmt.Errorf("%w: quality=%d: %v", ErrEncode, quality, err)
	}

	firstPass := len(out)
	passes := 1
	if firstPass > n.opts.MaxBytes {
		quality = CorrectiveQuality(n.opts.InitialQuality, n.opts.FloorQuality, n.opts.MaxBytes, firstPass)
		out, err = frame.EncodeJPEG(quality)
		if err != nil {
			return Result{}, fmt.Errorf("%w: quality=%d: %v", ErrEncode, quality, err)
		}
		passes = 2
	}

	width, height := frame.Size()
	return Result{
		Name:           DerivedName(name),
		Data:           out,
		Normalized:     true,
		Width:          width,
		Height:         height,
		Quality:        quality,
		FirstPassBytes: firstPass,
		Passes:         passes,
	}, nil
}

// CorrectiveQuality scales the initial quality by how far the first encode
// overshot the byte budget, clamped to floor.
func CorrectiveQuality(initial, floor, maxBytes, size int) int {
	if size <= 0 {
		return initial
	}
	q := int(int64(initial) * int64(maxBytes) / int64(size))
	if q < floor {
		return floor
	}
	if q > initial {
		return initial
	}
	return q
}

// DerivedName maps "dir/photo.png" to "dir/photo_compressed.jpg".
func DerivedName(name string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" || strings.HasSuffix(base, "/") {
		base = name
	}
	return base + derivedSuffix + derivedExt
}
