package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func BenchmarkNormalizeLargePNG(b *testing.B) {
	source := benchmarkPNG(b, 1920, 1080, 255)
	n := newNormalizerWithBackend(nil, DefaultOptions(), nil, stdlibBackend{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := n.Normalize("bench.png", source); !res.Normalized {
			b.Fatalf("normalize: %v", res.Fallback)
		}
	}
}

func BenchmarkNormalizeTransparentPNG(b *testing.B) {
	source := benchmarkPNG(b, 800, 800, 96)
	n := newNormalizerWithBackend(nil, DefaultOptions(), nil, stdlibBackend{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := n.Normalize("bench.png", source); !res.Normalized {
			b.Fatalf("normalize: %v", res.Fallback)
		}
	}
}

func benchmarkPNG(b *testing.B, w, h int, alpha uint8) []byte {
	b.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: alpha,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
