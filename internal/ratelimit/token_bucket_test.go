package ratelimit

import (
	"testing"
	"time"

	"github.com/dunamismax/smartlearn/internal/config"
	"github.com/redis/go-redis/v9"
)

func TestNewRedisTokenBucketValidatesInput(t *testing.T) {
	if _, err := NewRedisTokenBucket(nil, 10, time.Minute, ""); err == nil {
		t.Fatal("expected error for nil client")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewRedisTokenBucket(client, 0, time.Minute, ""); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := NewRedisTokenBucket(client, 10, 0, ""); err == nil {
		t.Fatal("expected error for zero window")
	}

	limiter, err := NewRedisTokenBucket(client, 60, time.Minute, " ")
	if err != nil {
		t.Fatalf("expected limiter, got %v", err)
	}
	if limiter.keyPrefix != "smartlearn:ratelimit" {
		t.Fatalf("expected default key prefix, got %q", limiter.keyPrefix)
	}
	if limiter.refillPerMS != 60.0/60000.0 {
		t.Fatalf("unexpected refill rate %v", limiter.refillPerMS)
	}
}

func TestFromConfigDisabled(t *testing.T) {
	limiter, err := FromConfig(nil, config.RateLimitConfig{Enabled: false})
	if err != nil || limiter != nil {
		t.Fatalf("expected nil limiter when disabled, got %v %v", limiter, err)
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("", "/v1/subjects"); got != "anonymous:/v1/subjects" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := Subject(" user-1 ", "/v1/me"); got != "user-1:/v1/me" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestToInt64(t *testing.T) {
	for _, in := range []any{int64(3), 3, float64(3), "3"} {
		got, err := toInt64(in)
		if err != nil || got != 3 {
			t.Fatalf("toInt64(%v) = %d, %v", in, got, err)
		}
	}
	if _, err := toInt64(true); err == nil {
		t.Fatal("expected error for bool")
	}
}
