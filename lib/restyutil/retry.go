package restyutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

var ErrTransientFetch = errors.New("transient fetch error")

// FetchError is returned once every attempt of a request failed.
type FetchError struct {
	Url      string
	Attempts int
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: failed after %d attempt(s): %s", e.Url, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): status %d", e.Url, e.Attempts, e.Status)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrTransientFetch, e.Err}
}

type BackoffStrategy string

const (
	BackoffNone        BackoffStrategy = "none"
	BackoffConstant    BackoffStrategy = "constant"
	BackoffExponential BackoffStrategy = "exponential"
)

type RetryPolicy struct {
	MaxAttempts int             `json:"max_attempts"`
	Backoff     BackoffStrategy `json:"backoff"`
	// the delay for constant backoff and the initial delay for exponential
	IntervalMs int `json:"interval_ms"`
}

// DefaultRetryPolicy retries 3 times in total without any delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: BackoffNone}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backoff(ctx context.Context) backoff.BackOff {
	interval := time.Duration(p.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond * 500
	}

	var b backoff.BackOff
	switch p.Backoff {
	case BackoffConstant:
		b = backoff.NewConstantBackOff(interval)
	case BackoffExponential:
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = interval
		exp.MaxElapsedTime = 0
		b = exp
	default:
		b = &backoff.ZeroBackOff{}
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts()-1)), ctx)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Get performs a GET request built by prepare (which may be nil) and retries
// it according to policy. 4xx responses other than 429 are not retried.
func Get(ctx context.Context, client *resty.Client, url string, policy RetryPolicy, prepare func(*resty.Request)) (*resty.Response, error) {
	attempts := 0
	var res *resty.Response
	var lastErr error
	var lastStatus int

	operation := func() error {
		attempts++
		req := client.R().SetContext(ctx)
		if prepare != nil {
			prepare(req)
		}

		var err error
		res, err = req.Get(url)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		lastErr = nil
		lastStatus = res.StatusCode()
		if res.IsError() {
			statusErr := fmt.Errorf("unexpected status %s", res.Status())
			if !retryableStatus(res.StatusCode()) {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.DebugContext(ctx, "retrying request", "url", url, "attempt", attempts, "wait", wait, "err", err)
	}

	err := backoff.RetryNotify(operation, policy.backoff(ctx), notify)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return res, &FetchError{
			Url:      url,
			Attempts: attempts,
			Status:   lastStatus,
			Err:      lastErr,
		}
	}
	return res, nil
}
