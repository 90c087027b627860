package detection_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/detection"
)

func TestCache_GetReturnsDefaultWhenAbsent(t *testing.T) {
	cache := detection.NewCache(8)

	values := cache.Get(uuid.New())
	if !values.Connected {
		t.Error("Expected default baseline to be connected")
	}
	if values.Movement != 0 || values.Voltage != 0 || values.Location != "" {
		t.Errorf("Expected zero baseline, got %+v", values)
	}
}

func TestCache_PutThenGet(t *testing.T) {
	cache := detection.NewCache(8)
	id := uuid.New()

	stored := detection.LastValues{Movement: 0.4, Voltage: 220.0, Connected: true, Location: "loc-a"}
	cache.Put(id, stored)

	if got := cache.Get(id); got != stored {
		t.Errorf("Expected %+v, got %+v", stored, got)
	}
}

func TestCache_EnsureKeepsExistingValues(t *testing.T) {
	cache := detection.NewCache(8)
	id := uuid.New()

	stored := detection.LastValues{Voltage: 220.0, Connected: false}
	cache.Put(id, stored)
	cache.Ensure(id)

	if got := cache.Get(id); got != stored {
		t.Errorf("Expected Ensure to keep existing values, got %+v", got)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := detection.NewCache(4)

	ids := make([]uuid.UUID, 16)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				cache.Put(id, detection.LastValues{Movement: float64(i), Connected: true})
				cache.Get(id)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		if got := cache.Get(id); got.Movement != 99 {
			t.Errorf("Expected final movement 99 for %s, got %f", id, got.Movement)
		}
	}
}
