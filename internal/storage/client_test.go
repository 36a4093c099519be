package storage

import (
	"context"
	"testing"

	"github.com/dunamismax/smartlearn/internal/config"
)

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b"})
	if err == nil {
		t.Fatal("expected error for empty bucket")
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.StorageConfig{
		Endpoint:  "minio:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "media",
		UseSSL:    true,
	})
	if cfg.Endpoint != "minio:9000" || cfg.Access != "key" || cfg.Secret != "secret" || cfg.Bucket != "media" || !cfg.UseSSL {
		t.Fatalf("unexpected storage config %+v", cfg)
	}
}

func TestClientAccessors(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "localhost:9000", Access: "key", Secret: "secretsecret", Bucket: "media"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Bucket() != "media" {
		t.Fatalf("unexpected bucket %s", client.Bucket())
	}
	if err := client.RemoveObject(context.Background(), " "); err != nil {
		t.Fatalf("expected blank key removal to be a no-op, got %v", err)
	}
}
