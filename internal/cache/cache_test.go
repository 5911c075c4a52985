package cache

import (
	"testing"
	"time"
)

func TestPutGet(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Expected (1,true), got (%d,%v)", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
}

func TestExpiry(t *testing.T) {
	c := New[string, string](time.Minute)
	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Put("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("Expected hit before expiry")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry removed, have %d", c.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New[string, string](0)
	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Put("k", "v")
	c.now = func() time.Time { return base.Add(24 * time.Hour) }
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected entry to survive with ttl disabled")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New[int, int](time.Minute)
	c.Put(1, 1)
	c.Put(2, 2)

	c.Invalidate(1)
	if _, ok := c.Get(1); ok {
		t.Error("Expected miss after Invalidate")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", c.Len())
	}
}

func TestPurgeExpired(t *testing.T) {
	c := New[int, int](time.Minute)
	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Put(1, 1)
	c.Put(2, 2)
	c.now = func() time.Time { return base.Add(30 * time.Second) }
	c.Put(3, 3)

	c.now = func() time.Time { return base.Add(70 * time.Second) }
	if removed := c.PurgeExpired(); removed != 2 {
		t.Errorf("Expected 2 purged, got %d", removed)
	}
	if _, ok := c.Get(3); !ok {
		t.Error("Expected unexpired entry to survive purge")
	}
}
