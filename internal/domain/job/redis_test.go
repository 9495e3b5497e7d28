package job

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"voiceweave-server-go/internal/platform/config"
)

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis(config.JobConfig{
		Retention: time.Minute,
		Redis: config.JobRedisConfig{
			Addr: mr.Addr(),
		},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	id := NewID()
	if err := store.Create(ctx, id, Record{Total: 3, Status: "Synthesizing block 0/3"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.Total != 3 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := store.Update(ctx, id, Record{Done: 3, Total: 3, Status: StatusComplete}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	rec, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !rec.Complete() || rec.Percentage() != 100 {
		t.Fatalf("expected complete record, got %+v", rec)
	}
}

func TestRedisStoreUnknownJob(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis(config.JobConfig{
		Redis: config.JobRedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	if _, err := store.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Update(ctx, "missing", Record{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis(config.JobConfig{
		Retention: time.Second,
		Redis:     config.JobRedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	id := NewID()
	if err := store.Create(ctx, id, Record{Total: 1}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
