package master

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessTrackerFiresAfterMaxRequestThresholdAndIsMonotonic(t *testing.T) {
	a := NewAccessTracker()
	now := time.Now()

	var lastTarget int
	for i := 0; i < 3; i++ {
		fire, target := a.Touch(1, now, 10*time.Second, 3, 4)
		assert.False(t, fire, "should not fire before crossing max_request_threshold")
		lastTarget = target
	}
	assert.Equal(t, 0, lastTarget)

	fire, target := a.Touch(1, now, 10*time.Second, 3, 4)
	assert.True(t, fire, "4th read within the window should cross the threshold of 3")
	assert.Equal(t, 4, target)

	// P8: once a target is set, every further read that leaves the window
	// larger than the current target fires again and raises the target by
	// exactly one; the target never decreases.
	for i := 1; i <= 3; i++ {
		fire, newTarget := a.Touch(1, now, 10*time.Second, 3, 4)
		assert.True(t, fire)
		assert.Equal(t, target+i, newTarget)
	}
	fire, target2 := a.Touch(1, now, 10*time.Second, 3, 4)
	assert.True(t, fire)
	assert.Equal(t, target+4, target2)
}

func TestAccessTrackerEvictsEntriesOlderThanTimeout(t *testing.T) {
	a := NewAccessTracker()
	base := time.Now()

	for i := 0; i < 3; i++ {
		a.Touch(1, base, 1*time.Second, 3, 4)
	}
	// Far enough in the future that every prior timestamp is evicted; the
	// window should behave as if it only has this one entry.
	fire, _ := a.Touch(1, base.Add(time.Hour), 1*time.Second, 3, 4)
	assert.False(t, fire)
}

func TestAccessTrackerChunksAreIndependent(t *testing.T) {
	a := NewAccessTracker()
	now := time.Now()

	for i := 0; i < 4; i++ {
		a.Touch(1, now, 10*time.Second, 3, 4)
	}
	fire, _ := a.Touch(2, now, 10*time.Second, 3, 4)
	assert.False(t, fire)
}
