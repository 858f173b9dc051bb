package linkedin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"linkedpost/infrastructure/logger"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RetryConfig controls the policies wrapped around LinkedIn calls.
type RetryConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	CircuitBreaker bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		CircuitBreaker: true,
	}
}

// response is a fully read HTTP response, so nothing needs closing after a retry.
type response struct {
	status int
	header http.Header
	body   []byte
}

// shouldRetry retries network errors, 5xx and 429. Caller cancellation is final.
func shouldRetry(_ *response, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if status := statusOf(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= 500
	}
	return true
}

// executors holds one policy chain for idempotent reads/uploads and one for
// the publish call, which must never be repeated within a single attempt.
type executors struct {
	idempotent failsafe.Executor[*response]
	publish    failsafe.Executor[*response]
}

func newExecutors(cfg RetryConfig) executors {
	var idem, pub []failsafe.Policy[*response]

	if cfg.MaxRetries > 0 {
		if cfg.BaseDelay <= 0 {
			cfg.BaseDelay = 200 * time.Millisecond
		}
		if cfg.MaxDelay < cfg.BaseDelay {
			cfg.MaxDelay = cfg.BaseDelay
		}
		retry := retrypolicy.NewBuilder[*response]().
			WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
			WithMaxRetries(cfg.MaxRetries).
			WithJitterFactor(0.1).
			HandleIf(shouldRetry).
			Build()
		idem = append(idem, retry)
	}

	if cfg.CircuitBreaker {
		cb := circuitbreaker.NewBuilder[*response]().
			WithFailureThresholdRatio(5, 10).
			WithDelay(30 * time.Second).
			WithSuccessThreshold(1).
			HandleIf(shouldRetry).
			OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
				logger.GetLogger().
					WithField("from_state", stateName(event.OldState)).
					WithField("to_state", stateName(event.NewState)).
					Warn("linkedin circuit breaker state change")
			}).
			Build()
		idem = append(idem, cb)
		pub = append(pub, cb)
	}

	var ex executors
	if len(idem) > 0 {
		ex.idempotent = failsafe.With(idem...)
	}
	if len(pub) > 0 {
		ex.publish = failsafe.With(pub...)
	}
	return ex
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

func run(ctx context.Context, executor failsafe.Executor[*response], fn func() (*response, error)) (*response, error) {
	if executor == nil {
		return fn()
	}
	return executor.WithContext(ctx).Get(fn)
}

// do sends one request with its own timeout and reads the body fully.
// Non-2xx responses are returned as *statusError.
func (c *Client) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{status: resp.StatusCode, body: body}
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}
