package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMemory(8)
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing = ok=%v err=%v", ok, err)
	}
	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if string(got) != "v" {
		t.Fatalf("Get = %q", got)
	}
}

func TestMemoryExpiresEntries(t *testing.T) {
	t.Parallel()

	m := NewMemory(8)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("fresh entry should hit")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expired entry should miss")
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry should be collected, Len = %d", m.Len())
	}
}

func TestMemoryEvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	m := NewMemory(3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	if err := m.Set(ctx, "k3", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "k0"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, ok, _ := m.Get(ctx, "k3"); !ok {
		t.Fatal("newest entry should be present")
	}
}

func TestMemoryEvictsExpiredBeforeLive(t *testing.T) {
	t.Parallel()

	m := NewMemory(2)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "live", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set(ctx, "shortlived", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(time.Minute)
	if err := m.Set(ctx, "fresh", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "live"); !ok {
		t.Fatal("live entry was evicted ahead of an expired one")
	}
	if _, ok, _ := m.Get(ctx, "shortlived"); ok {
		t.Fatal("expired entry survived eviction")
	}
}

func TestMemoryUpdateKeepsSingleSlot(t *testing.T) {
	t.Parallel()

	m := NewMemory(2)
	ctx := context.Background()
	if err := m.Set(ctx, "k", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	got, _, _ := m.Get(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("Get = %q, want v2", got)
	}
}

func TestMemoryReturnsDetachedCopies(t *testing.T) {
	t.Parallel()

	m := NewMemory(2)
	ctx := context.Background()
	original := []byte("payload")
	if err := m.Set(ctx, "k", original, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	original[0] = 'X'

	got, _, _ := m.Get(ctx, "k")
	if string(got) != "payload" {
		t.Fatalf("stored value aliased caller slice: %q", got)
	}
	got[0] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	if string(again) != "payload" {
		t.Fatalf("returned value aliased cache slice: %q", again)
	}
}
