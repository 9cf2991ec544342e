package objpool

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_resolveDefaults(t *testing.T) {
	cfg := Config{}.resolve()
	assert.Equal(t, int32(defaultSharedCapacityFactor), cfg.SharedCapacityFactor)
	assert.Equal(t, int32(defaultInterval), cfg.Interval)
	assert.Equal(t, 2*runtime.NumCPU(), cfg.MaxDelayedQueuesPerThread)
	assert.Equal(t, cfg.Interval, cfg.DelayedQueueInterval)
	assert.Equal(t, int32(minLinkCapacity), cfg.LinkCapacity)
	// MaxCapacityPerThread defaults to 4096 (spec section 6) when the
	// option was never called; only an explicit WithMaxCapacityPerThread(0)
	// disables pooling.
	assert.Equal(t, int32(defaultMaxCapacityPerThread), cfg.MaxCapacityPerThread)
}

func TestConfig_resolveExplicitZeroMaxCapacityDisablesPooling(t *testing.T) {
	var cfg Config
	WithMaxCapacityPerThread(0)(&cfg)
	cfg = cfg.resolve()
	assert.Equal(t, int32(0), cfg.MaxCapacityPerThread)
}

func TestConfig_resolveFloorsSharedCapacityFactor(t *testing.T) {
	cfg := Config{SharedCapacityFactor: 1}.resolve()
	assert.Equal(t, int32(minSharedCapacityFactor), cfg.SharedCapacityFactor)
}

func TestConfig_resolveLinkCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	cfg := Config{LinkCapacity: 17}.resolve()
	assert.Equal(t, int32(32), cfg.LinkCapacity)

	cfg = Config{LinkCapacity: 8}.resolve()
	assert.Equal(t, int32(minLinkCapacity), cfg.LinkCapacity, "floored at 16 even though 8 is already a power of two")

	cfg = Config{LinkCapacity: 64}.resolve()
	assert.Equal(t, int32(64), cfg.LinkCapacity)
}

func TestConfig_resolveCustomDelayedQueueIntervalSurvives(t *testing.T) {
	cfg := Config{Interval: 4, DelayedQueueInterval: 20}.resolve()
	assert.Equal(t, int32(4), cfg.Interval)
	assert.Equal(t, int32(20), cfg.DelayedQueueInterval)
}

func TestOptions_applyInOrder(t *testing.T) {
	var cfg Config
	opts := []Option{
		WithMaxCapacityPerThread(100),
		WithSharedCapacityFactor(4),
		WithInterval(2),
		WithMaxDelayedQueuesPerThread(3),
		WithDelayedQueueInterval(5),
		WithLinkCapacity(32),
	}
	for _, o := range opts {
		o(&cfg)
	}
	assert.Equal(t, int32(100), cfg.MaxCapacityPerThread)
	assert.Equal(t, int32(4), cfg.SharedCapacityFactor)
	assert.Equal(t, int32(2), cfg.Interval)
	assert.Equal(t, 3, cfg.MaxDelayedQueuesPerThread)
	assert.Equal(t, int32(5), cfg.DelayedQueueInterval)
	assert.Equal(t, int32(32), cfg.LinkCapacity)
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int32]int32{
		1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 16: 16, 17: 32, 1023: 1024, 1024: 1024,
	}
	for in, want := range cases {
		assert.Equal(t, want, nextPowerOfTwo(in), "nextPowerOfTwo(%d)", in)
	}
}
