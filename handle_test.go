package objpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_claim(t *testing.T) {
	h := &Handle[int]{}

	require.True(t, h.claim(7), "first claim must succeed")
	assert.False(t, h.claim(7), "second claim for the same id must fail")
	assert.False(t, h.claim(8), "second claim for a different id must also fail")
}

func TestHandle_Recycle_nilStackIsNoop(t *testing.T) {
	h := &Handle[int]{}
	// a fresh handle (as returned by the pool-disabled fast path) has no
	// home stack; recycling it must not panic, and must leave its
	// bookkeeping untouched.
	h.Recycle()
	assert.Equal(t, int64(0), h.recycleID.Load())
	assert.Equal(t, int64(0), h.lastRecycledID.Load())
}

func TestAdmit_intervalDisabled(t *testing.T) {
	h := &Handle[int]{}
	var counter int32
	for i := 0; i < 3; i++ {
		assert.True(t, admit(h, &counter, 0), "interval<=0 always admits")
	}
}

func TestAdmit_samplesOneInN(t *testing.T) {
	h := &Handle[int]{}
	var counter int32
	const interval = 4

	var admitted int
	for i := 0; i < interval*3; i++ {
		if admit(h, &counter, interval) {
			admitted++
		}
	}
	// once sampled in, beenSampled latches true and every subsequent call
	// admits; the first admission happens at call interval+1.
	assert.True(t, h.beenSampled.Load())
	assert.GreaterOrEqual(t, admitted, 1)

	// once sampled, a fresh counter must not cause another drop.
	var otherCounter int32
	assert.True(t, admit(h, &otherCounter, interval))
}
