//go:build integration

package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestBootstrapRedis(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(shutdownCtx)
	})
	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}

	cfg := testConfig(t)
	cfg.Cache.Driver = "redis"
	cfg.Cache.RedisURL = url
	cfg.Cache.Compression = "gzip"
	a, err := Bootstrap(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer a.Close()

	policy, err := a.Redis.ConfigGet(ctx, "maxmemory-policy").Result()
	if err != nil || policy["maxmemory-policy"] != "volatile-lru" {
		t.Fatalf("expected volatile-lru, got %v err=%v", policy, err)
	}

	var out bytes.Buffer
	if err := a.CacheDemo(ctx, &out, "MiModelo", map[string]any{"nombre": "Alex", "apellido": "gomez"}); err != nil {
		t.Fatalf("cache demo: %v\n%s", err, out.String())
	}
	out.Reset()
	if err := a.HelpdeskDemo(ctx, &out); err != nil {
		t.Fatalf("helpdesk demo: %v\n%s", err, out.String())
	}
	text := out.String()
	first := strings.Index(text, "(priority 3)")
	last := strings.Index(text, "(priority 1)")
	if first < 0 || last < first || !strings.HasSuffix(text, "no pending tickets\n") {
		t.Fatalf("expected tickets attended by priority:\n%s", text)
	}
}
