package imaging

import (
	"context"
	"strings"
	"testing"
)

func TestObjectStoreEmitter_WritesNormalizedJPEG(t *testing.T) {
	writer := &captureWriter{}
	emitter := ObjectStoreEmitter{Storage: writer}

	stored, err := emitter.Emit(context.Background(), "user-1", "abc", Result{
		Name:       "my photo_compressed.jpg",
		Data:       []byte{0xff, 0xd8, 0xff},
		Normalized: true,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	if stored.Key != "profile_pictures/user-1/abc-my_photo_compressed.jpg" {
		t.Fatalf("unexpected key %s", stored.Key)
	}
	if writer.contentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", writer.contentType)
	}
}

func TestObjectStoreEmitter_PassthroughKeepsOriginalName(t *testing.T) {
	writer := &captureWriter{}
	emitter := ObjectStoreEmitter{Storage: writer, Prefix: "/avatars/"}

	stored, err := emitter.Emit(context.Background(), "../u", "", Result{
		Name: "x.PNG",
		Data: []byte("0123456789"),
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if stored.Key != "avatars/___u/x.png" {
		t.Fatalf("unexpected key %s", stored.Key)
	}
	if !strings.HasPrefix(writer.contentType, "text/plain") {
		t.Fatalf("expected sniffed content type, got %s", writer.contentType)
	}
	if stored.Normalized {
		t.Fatal("expected passthrough to be reported")
	}
}

func TestObjectStoreEmitter_RejectsEmptyData(t *testing.T) {
	emitter := ObjectStoreEmitter{Storage: &captureWriter{}}
	if _, err := emitter.Emit(context.Background(), "u", "t", Result{Name: "a.jpg"}); err == nil {
		t.Fatal("expected error for empty data")
	}
}

type captureWriter struct {
	key         string
	data        []byte
	contentType string
}

func (w *captureWriter) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	w.key = key
	w.data = data
	w.contentType = contentType
	return nil
}
