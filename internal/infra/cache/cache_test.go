package cache_test

import (
	"testing"
	"time"

	"github.com/dmeireles/escolar-iam-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("tenant-1", "value1")
	val, ok := c.Get("tenant-1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("tenant-1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("tenant-1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_DeleteInvalidates(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("tenant-1", "value1")
	c.Delete("tenant-1")

	_, ok := c.Get("tenant-1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_LenSkipsExpired(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("a", "1")
	c.Set("b", "2")
	if got := c.Len(); got != 2 {
		t.Fatalf("expected 2 live entries, got %d", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := c.Len(); got != 0 {
		t.Errorf("expected 0 live entries after expiry, got %d", got)
	}
}
