package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	slidingWindowDurationConstant = 60 * time.Second

	rateLimitWaitMessageConstant    = "Rate limit reached, waiting before next call"
	logFieldOperationLabelConstant  = "operation"
	logFieldWaitDurationConstant    = "wait_duration"
	logFieldWindowOccupancyConstant = "window_occupancy"
)

// Limiter admits at most a configured number of calls within any trailing
// 60-second window. Admit blocks the caller until a slot frees up; callers
// are serialized in lock-acquisition order with no additional fairness.
type Limiter struct {
	maximumCallsPerWindow int
	logger                *zap.Logger
	mutex                 sync.Mutex
	callTimestamps        []time.Time
	currentTime           func() time.Time
	sleep                 func(time.Duration)
}

// NewLimiter constructs a Limiter with the supplied per-window capacity.
func NewLimiter(maximumCallsPerWindow int, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		maximumCallsPerWindow: maximumCallsPerWindow,
		logger:                logger,
		currentTime:           time.Now,
		sleep:                 time.Sleep,
	}
}

// Admit blocks until the call identified by operationLabel may proceed and
// records it in the window.
func (limiter *Limiter) Admit(operationLabel string) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	admissionTime := limiter.currentTime()
	limiter.pruneExpiredTimestamps(admissionTime)

	if len(limiter.callTimestamps) >= limiter.maximumCallsPerWindow {
		waitDuration := slidingWindowDurationConstant - admissionTime.Sub(limiter.callTimestamps[0])
		if waitDuration > 0 {
			limiter.logger.Warn(
				rateLimitWaitMessageConstant,
				zap.String(logFieldOperationLabelConstant, operationLabel),
				zap.Duration(logFieldWaitDurationConstant, waitDuration),
				zap.Int(logFieldWindowOccupancyConstant, len(limiter.callTimestamps)),
			)
			limiter.sleep(waitDuration)
			limiter.pruneExpiredTimestamps(limiter.currentTime())
		}
	}

	limiter.callTimestamps = append(limiter.callTimestamps, limiter.currentTime())
}

func (limiter *Limiter) pruneExpiredTimestamps(referenceTime time.Time) {
	windowStart := referenceTime.Add(-slidingWindowDurationConstant)
	retainedTimestamps := limiter.callTimestamps[:0]
	for _, callTimestamp := range limiter.callTimestamps {
		if callTimestamp.After(windowStart) {
			retainedTimestamps = append(retainedTimestamps, callTimestamp)
		}
	}
	limiter.callTimestamps = retainedTimestamps
}
