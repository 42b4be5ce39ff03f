package batch

import (
	"fmt"
	"time"
)

// FailurePolicy decides what happens after an invocation fails.
type FailurePolicy string

const (
	// PolicyIgnore records the failure and moves on.
	PolicyIgnore FailurePolicy = "ignore"
	// PolicyHalt stops the job at the first failure.
	PolicyHalt FailurePolicy = "halt"
	// PolicyRetry re-dispatches up to Retries more times, then moves on.
	PolicyRetry FailurePolicy = "retry"
)

type Policy struct {
	OnFailure FailurePolicy `mapstructure:"onFailure"`
	Retries   int           `mapstructure:"retries"`
	// Timeout bounds a single attempt. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`
}

func DefaultPolicy() Policy {
	return Policy{OnFailure: PolicyIgnore}
}

func (p Policy) Validate() error {
	switch p.OnFailure {
	case "", PolicyIgnore, PolicyHalt, PolicyRetry:
	default:
		return fmt.Errorf("unknown failure policy %q (want ignore, halt or retry)", p.OnFailure)
	}
	if p.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", p.Retries)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", p.Timeout)
	}
	return nil
}

func (p Policy) mode() FailurePolicy {
	if p.OnFailure == "" {
		return PolicyIgnore
	}
	return p.OnFailure
}

// attempts is the maximum number of dispatches per invocation.
func (p Policy) attempts() int {
	if p.mode() == PolicyRetry {
		return 1 + p.Retries
	}
	return 1
}
