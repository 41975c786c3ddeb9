package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRing_PushAndEvict(t *testing.T) {
	store := NewStore(3)

	for i := 0; i < 5; i++ {
		store.Push("speed", float64(i), baseTime.Add(time.Duration(i)*time.Second))
		assert.LessOrEqual(t, store.Len("speed"), 3, "length after push %d", i)
	}

	w := store.Window("speed")
	require.Len(t, w, 3)
	assert.Equal(t, 2.0, w[0].Value)
	assert.Equal(t, 3.0, w[1].Value)
	assert.Equal(t, 4.0, w[2].Value)
	assert.Equal(t, "speed", w[0].Metric)
}

func TestStore_CapacityInvariant(t *testing.T) {
	capacities := []int{1, 2, 7, 50, 100}
	for _, c := range capacities {
		store := NewStore(c)
		for i := 0; i < 3*c+1; i++ {
			store.Push("rpm", float64(i), baseTime.Add(time.Duration(i)*time.Second))
			if store.Len("rpm") > c {
				t.Fatalf("capacity %d: len %d after push %d", c, store.Len("rpm"), i)
			}
		}
		w := store.Window("rpm")
		if len(w) != c {
			t.Fatalf("capacity %d: window len = %d", c, len(w))
		}
		// Chronological order survives wraparound
		for i := 1; i < len(w); i++ {
			if !w[i].Timestamp.After(w[i-1].Timestamp) {
				t.Fatalf("capacity %d: window out of order at %d", c, i)
			}
		}
	}
}

func TestStore_UnknownMetric(t *testing.T) {
	store := NewStore(10)

	w := store.Window("missing")
	assert.NotNil(t, w)
	assert.Empty(t, w)

	_, ok := store.Latest("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len("missing"))
}

func TestStore_WindowIsCopy(t *testing.T) {
	store := NewStore(4)
	store.Push("temp", 90, baseTime)

	w := store.Window("temp")
	w[0].Value = -1

	latest, ok := store.Latest("temp")
	require.True(t, ok)
	assert.Equal(t, 90.0, latest.Value)
}

func TestStore_Latest(t *testing.T) {
	store := NewStore(2)
	store.Push("fuel", 80, baseTime)
	store.Push("fuel", 79, baseTime.Add(time.Minute))
	store.Push("fuel", 78, baseTime.Add(2*time.Minute))

	latest, ok := store.Latest("fuel")
	require.True(t, ok)
	assert.Equal(t, 78.0, latest.Value)
	assert.Equal(t, baseTime.Add(2*time.Minute), latest.Timestamp)
}

func TestStore_MetricsSorted(t *testing.T) {
	store := NewStore(5)
	store.Push("speed", 1, baseTime)
	store.Push("battery_voltage", 12.6, baseTime)
	store.Push("engine_rpm", 900, baseTime)

	assert.Equal(t, []string{"battery_voltage", "engine_rpm", "speed"}, store.Metrics())
}

func TestNewStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewStore(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewRing(-3).Capacity())
}

func BenchmarkStore_Push(b *testing.B) {
	store := NewStore(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Push("speed", float64(i), baseTime.Add(time.Duration(i)*time.Millisecond))
	}
}
