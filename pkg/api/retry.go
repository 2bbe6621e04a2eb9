package api

import "errors"

type (
	// RetryPolicy bounds how a transient step failure is retried before
	// the run's error flag is raised. Backoff values are milliseconds
	RetryPolicy struct {
		MaxRetries  int    `json:"max_retries"`
		InitBackoff int64  `json:"init_backoff_ms"`
		MaxBackoff  int64  `json:"max_backoff_ms"`
		BackoffType string `json:"backoff_type"`
	}
)

const (
	BackoffTypeFixed       = "fixed"
	BackoffTypeLinear      = "linear"
	BackoffTypeExponential = "exponential"
)

var ErrInvalidBackoffType = errors.New("invalid backoff type")

// DefaultRetryPolicy returns the retry bounds applied when no policy is
// configured
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:  3,
		InitBackoff: 1000,
		MaxBackoff:  30000,
		BackoffType: BackoffTypeExponential,
	}
}

// Validate checks the policy's backoff type
func (p *RetryPolicy) Validate() error {
	switch p.BackoffType {
	case BackoffTypeFixed, BackoffTypeLinear, BackoffTypeExponential:
		return nil
	default:
		return ErrInvalidBackoffType
	}
}
