package job

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Hour)
	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	id := NewID()
	if err := store.Create(ctx, id, Record{Total: 4, Status: "Processing segment 0/4"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.Total != 4 || rec.Done != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := store.Update(ctx, id, Record{Done: 4, Total: 4, Status: StatusComplete}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	rec, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !rec.Complete() {
		t.Fatalf("expected complete record, got %+v", rec)
	}
	if rec.CompletedAt.IsZero() {
		t.Fatalf("expected completion timestamp")
	}
}

func TestMemoryStoreUnknownJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Hour)
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

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		rec      Record
		expected float64
	}{
		{"zero total", Record{Done: 0, Total: 0}, 0},
		{"halfway", Record{Done: 1, Total: 2}, 50},
		{"one third rounds to a decimal", Record{Done: 1, Total: 3}, 33.3},
		{"two thirds rounds up", Record{Done: 2, Total: 3}, 66.7},
		{"complete", Record{Done: 5, Total: 5}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Percentage(); got != tt.expected {
				t.Errorf("Percentage() = %v, expected %v", got, tt.expected)
			}
		})
	}
}
