package engine

import (
	"math"
	"time"

	"github.com/flipflow/flipflow/pkg/api"
)

type backoffCalculator func(baseDelay int64, retryCount int) int64

var backoffCalculators = map[string]backoffCalculator{
	api.BackoffTypeFixed: func(base int64, _ int) int64 {
		return base
	},
	api.BackoffTypeLinear: func(base int64, count int) int64 {
		return base * int64(count+1)
	},
	api.BackoffTypeExponential: func(base int64, count int) int64 {
		multiplier := math.Pow(2, float64(count))
		return int64(float64(base) * multiplier)
	},
}

// shouldRetry reports whether another attempt fits the retry budget. A
// negative budget never gives up
func (e *Engine) shouldRetry(retryCount int) bool {
	if e.policy.MaxRetries == 0 {
		return false
	}
	if e.policy.MaxRetries < 0 {
		return true
	}
	return retryCount < e.policy.MaxRetries
}

// retryDelay calculates the backoff before the given retry, capped at
// the policy's maximum
func (e *Engine) retryDelay(retryCount int) time.Duration {
	calculator, ok := backoffCalculators[e.policy.BackoffType]
	if !ok {
		calculator = backoffCalculators[api.BackoffTypeFixed]
	}

	delay := min(
		calculator(e.policy.InitBackoff, retryCount), e.policy.MaxBackoff,
	)

	return time.Duration(delay) * time.Millisecond
}
