package escalation

import (
	"context"
	"errors"
	"time"

	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

var errNotConfigured = errors.New("escalation is not configured")

// RetryPolicy bounds each attempt and spaces retries exponentially.
type RetryPolicy struct {
	MaxAttempts    int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Retrying wraps a Classifier with per-attempt timeouts and backoff. Every
// failure it returns is a *domain.EscalationFailureError.
type Retrying struct {
	next   Classifier
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetrying(next Classifier, policy RetryPolicy) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrying{next: next, policy: policy, sleep: sleepCtx}
}

func (r *Retrying) Classify(ctx context.Context, req Request) (*Suggestion, error) {
	log := logger.GetLogger().WithField("transaction_id", req.Transaction.ID)
	backoff := r.policy.InitialBackoff

	var lastErr error
	attempt := 0
	for attempt < r.policy.MaxAttempts {
		attempt++

		s, err := r.attempt(ctx, req)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil || attempt == r.policy.MaxAttempts {
			break
		}

		log.WithError(err).WithField("attempt", attempt).Warn("Escalation attempt failed, retrying")
		if err := r.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff *= 2
		if r.policy.MaxBackoff > 0 && backoff > r.policy.MaxBackoff {
			backoff = r.policy.MaxBackoff
		}
	}

	var failure *domain.EscalationFailureError
	if errors.As(lastErr, &failure) {
		failure.Attempts = attempt
		return nil, failure
	}
	return nil, &domain.EscalationFailureError{TransactionID: req.Transaction.ID, Attempts: attempt, Err: lastErr}
}

func (r *Retrying) attempt(ctx context.Context, req Request) (*Suggestion, error) {
	if r.policy.Timeout <= 0 {
		return r.next.Classify(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()
	return r.next.Classify(attemptCtx, req)
}

func retryable(err error) bool {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	return !errors.Is(err, errNotConfigured) && !errors.Is(err, context.Canceled)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
