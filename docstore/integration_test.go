//go:build integration

package docstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgSeq atomic.Int64

func TestPostgresCollectionSuite(t *testing.T) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("odm"),
		tcpostgres.WithUsername("odm"),
		tcpostgres.WithPassword("odm"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(shutdownCtx)
	})
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}

	runCollectionSuite(t, func(t *testing.T) Database {
		// each subtest gets its own tables
		prefix := fmt.Sprintf("itest%d_", pgSeq.Add(1))
		db, err := OpenSQL(ctx, "pgx", dsn, WithTablePrefix(prefix))
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}
