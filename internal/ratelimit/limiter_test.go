package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testWindowCapacityConstant = 3
	testCallCountConstant      = 10
)

type simulatedClock struct {
	now time.Time
}

func (clock *simulatedClock) currentTime() time.Time {
	return clock.now
}

func (clock *simulatedClock) advance(duration time.Duration) {
	clock.now = clock.now.Add(duration)
}

func newSimulatedLimiter(capacity int) (*Limiter, *simulatedClock, *[]time.Duration) {
	clock := &simulatedClock{now: time.Unix(1_700_000_000, 0)}
	recordedWaits := &[]time.Duration{}

	limiter := NewLimiter(capacity, zap.NewNop())
	limiter.currentTime = clock.currentTime
	limiter.sleep = func(waitDuration time.Duration) {
		*recordedWaits = append(*recordedWaits, waitDuration)
		clock.advance(waitDuration)
	}

	return limiter, clock, recordedWaits
}

func TestLimiterAdmitsUpToCapacityWithoutWaiting(testInstance *testing.T) {
	limiter, clock, recordedWaits := newSimulatedLimiter(testWindowCapacityConstant)

	for callIndex := 0; callIndex < testWindowCapacityConstant; callIndex++ {
		limiter.Admit("test")
		clock.advance(time.Second)
	}

	require.Empty(testInstance, *recordedWaits)
}

func TestLimiterBlocksUntilOldestCallExpires(testInstance *testing.T) {
	limiter, clock, recordedWaits := newSimulatedLimiter(testWindowCapacityConstant)

	for callIndex := 0; callIndex < testWindowCapacityConstant; callIndex++ {
		limiter.Admit("test")
		clock.advance(time.Second)
	}

	limiter.Admit("test")

	require.Len(testInstance, *recordedWaits, 1)
	require.Equal(testInstance, 57*time.Second, (*recordedWaits)[0])
}

func TestLimiterNeverExceedsCapacityInAnyTrailingWindow(testInstance *testing.T) {
	limiter, clock, _ := newSimulatedLimiter(testWindowCapacityConstant)

	admissionTimes := make([]time.Time, 0, testCallCountConstant)
	for callIndex := 0; callIndex < testCallCountConstant; callIndex++ {
		limiter.Admit("test")
		admissionTimes = append(admissionTimes, clock.now)
		clock.advance(500 * time.Millisecond)
	}

	for _, windowEnd := range admissionTimes {
		windowStart := windowEnd.Add(-60 * time.Second)
		admittedInWindow := 0
		for _, admissionTime := range admissionTimes {
			if admissionTime.After(windowStart) && !admissionTime.After(windowEnd) {
				admittedInWindow++
			}
		}
		require.LessOrEqual(testInstance, admittedInWindow, testWindowCapacityConstant)
	}
}

func TestLimiterForgetsCallsOlderThanWindow(testInstance *testing.T) {
	limiter, clock, recordedWaits := newSimulatedLimiter(testWindowCapacityConstant)

	for callIndex := 0; callIndex < testWindowCapacityConstant; callIndex++ {
		limiter.Admit("test")
	}

	clock.advance(61 * time.Second)

	for callIndex := 0; callIndex < testWindowCapacityConstant; callIndex++ {
		limiter.Admit("test")
	}

	require.Empty(testInstance, *recordedWaits)
}
