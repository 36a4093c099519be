package imaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
)

const defaultPrefix = "profile_pictures"

type objectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// Stored describes an image persisted by an ObjectStoreEmitter.
type Stored struct {
	Key         string
	ContentType string
	Bytes       int
	Normalized  bool
}

type ObjectStoreEmitter struct {
	Storage objectWriter
	Prefix  string
}

// Emit writes res under <prefix>/<owner>/<token>-<name>. The token keeps
// successive uploads of the same file name from overwriting each other.
func (e ObjectStoreEmitter) Emit(ctx context.Context, ownerID, token string, res Result) (Stored, error) {
	if e.Storage == nil {
		return Stored{}, errors.New("storage client is required")
	}
	if len(res.Data) == 0 {
		return Stored{}, errors.New("image data is empty")
	}

	filename := sanitizeFileName(path.Base(res.Name))
	if t := sanitizePathToken(token); t != "unknown" {
		filename = t + "-" + filename
	}
	objectKey := path.Join(defaultObjectPrefix(e.Prefix), sanitizePathToken(ownerID), filename)

	contentType := contentTypeFor(res)
	if err := e.Storage.WriteObject(ctx, objectKey, res.Data, contentType); err != nil {
		return Stored{}, fmt.Errorf("store image %s: %w", objectKey, err)
	}

	return Stored{
		Key:         objectKey,
		ContentType: contentType,
		Bytes:       len(res.Data),
		Normalized:  res.Normalized,
	}, nil
}

func defaultObjectPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return defaultPrefix
	}
	return prefix
}

func contentTypeFor(res Result) string {
	if res.Normalized {
		return "image/jpeg"
	}
	return http.DetectContentType(res.Data)
}

func sanitizeFileName(name string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return sanitizePathToken(base) + sanitizeExt(ext)
}

func sanitizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	return "." + strings.ToLower(sanitizePathToken(strings.TrimPrefix(ext, ".")))
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
