package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_Basic(t *testing.T) {
	c := New[string, string]()
	defer c.Close()

	c.Set("key1", "value1")

	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected 'value1', got %v", value)
	}

	if _, exists = c.Get("nonexistent"); exists {
		t.Error("Expected nonexistent key to not exist")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := NewWithConfig[string, int](100, time.Minute, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.SetWithExpiry("expiring", 1, time.Second)
	if v, ok := c.Get("expiring"); !ok || v != 1 {
		t.Error("Expected item to exist immediately after setting")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get("expiring"); ok {
		t.Error("Expected item to be expired")
	}
	if c.Size() != 0 {
		t.Errorf("Expected expired item to be dropped on read, size %d", c.Size())
	}
}

func TestCache_SizeLimitEvictsOldest(t *testing.T) {
	c := NewWithConfig[string, int](3, time.Hour, 0)

	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Set("key3", 3)
	c.Set("key4", 4)

	if c.Size() != 3 {
		t.Errorf("Expected size to remain 3 after eviction, got %d", c.Size())
	}
	if _, ok := c.Get("key1"); ok {
		t.Error("Expected oldest item to be evicted")
	}
	if _, ok := c.Get("key4"); !ok {
		t.Error("Expected newest item to exist after eviction")
	}

	// overwriting an existing key never evicts
	c.Set("key2", 20)
	if c.Size() != 3 {
		t.Errorf("Expected size 3 after overwrite, got %d", c.Size())
	}
	if _, ok := c.Get("key3"); !ok {
		t.Error("Expected key3 to survive an overwrite of key2")
	}
}

func TestCache_SetIfAbsent(t *testing.T) {
	c := NewWithConfig[string, bool](10, time.Hour, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if !c.SetIfAbsent("cb:1", true, time.Second) {
		t.Error("Expected first SetIfAbsent to store")
	}
	if c.SetIfAbsent("cb:1", true, time.Second) {
		t.Error("Expected duplicate SetIfAbsent to be rejected")
	}

	now = now.Add(2 * time.Second)
	if !c.SetIfAbsent("cb:1", true, time.Second) {
		t.Error("Expected SetIfAbsent to store once the old entry expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[string, string]()
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	if _, exists := c.Get("key1"); exists {
		t.Error("Expected deleted key to not exist")
	}
}

func TestCache_Stats(t *testing.T) {
	c := NewWithConfig[string, string](100, time.Hour, 0)

	c.Set("key1", "value1")
	c.SetWithExpiry("expired", "value", -time.Hour)

	stats := c.GetStats()
	if stats.Size != 2 {
		t.Errorf("Expected total size 2, got %d", stats.Size)
	}
	if stats.MaxSize != 100 {
		t.Errorf("Expected max size 100, got %d", stats.MaxSize)
	}
	if stats.ExpiredItems != 1 {
		t.Errorf("Expected 1 expired item, got %d", stats.ExpiredItems)
	}
}

func TestCache_Cleanup(t *testing.T) {
	c := NewWithConfig[string, string](100, time.Hour, 10*time.Millisecond)
	defer c.Close()

	c.SetWithExpiry("temp1", "value1", time.Millisecond)
	c.SetWithExpiry("temp2", "value2", time.Millisecond)
	c.Set("permanent", "value")

	deadline := time.Now().Add(time.Second)
	for c.Size() > 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if c.Size() != 1 {
		t.Errorf("Expected cleanup to remove expired items, size: %d", c.Size())
	}
	if _, exists := c.Get("permanent"); !exists {
		t.Error("Expected permanent item to still exist after cleanup")
	}
}

func TestCache_CloseTwice(t *testing.T) {
	c := New[int, int]()
	c.Close()
	c.Close()
}

func TestCache_Concurrent(t *testing.T) {
	c := New[string, int]()
	defer c.Close()

	const numGoroutines = 10
	const numOperations = 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				c.Set(fmt.Sprintf("key-%d-%d", id, j), j)
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				c.Get(fmt.Sprintf("key-%d-%d", id, j))
			}
		}(i)
	}
	wg.Wait()
}
