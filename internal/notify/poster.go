package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const errorBodyLimit = 1024

// posterTiming bounds webhook delivery. Notifications ride the same
// sequential run as the backups themselves, so retries are short.
type posterTiming struct {
	timeout           time.Duration
	rateInterval      time.Duration
	rateBurst         int
	backoffInitial    time.Duration
	backoffMax        time.Duration
	backoffMaxElapsed time.Duration
}

var defaultPosterTiming = posterTiming{
	timeout:           10 * time.Second,
	rateInterval:      time.Second,
	rateBurst:         1,
	backoffInitial:    time.Second,
	backoffMax:        10 * time.Second,
	backoffMaxElapsed: 30 * time.Second,
}

// poster delivers JSON payloads to one webhook with rate limiting and
// bounded retry on transient failures.
type poster struct {
	logger  zerolog.Logger
	name    string
	url     string
	client  *retryablehttp.Client
	timing  posterTiming
	limiter *rate.Limiter
}

func newPoster(logger zerolog.Logger, name, url string, timing posterTiming) *poster {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timing.timeout}

	return &poster{
		logger:  logger,
		name:    name,
		url:     url,
		client:  client,
		timing:  timing,
		limiter: rate.NewLimiter(rate.Every(timing.rateInterval), timing.rateBurst),
	}
}

func (p *poster) post(ctx context.Context, payload []byte) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.timing.backoffInitial
	policy.MaxInterval = p.timing.backoffMax
	policy.MaxElapsedTime = p.timing.backoffMaxElapsed
	policy.Reset()

	for {
		err := p.postOnce(ctx, payload)
		if err == nil {
			return nil
		}

		var wait time.Duration
		var after *retryAfterError
		var transient *transientError
		switch {
		case errors.As(err, &after):
			if policy.NextBackOff() == backoff.Stop {
				return err
			}
			wait = after.wait
		case errors.As(err, &transient):
			wait = policy.NextBackOff()
			if wait == backoff.Stop {
				return err
			}
		default:
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *poster) postOnce(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timing.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &transientError{err: fmt.Errorf("%s request failed: %w", p.name, err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return &retryAfterError{wait: wait, err: fmt.Errorf("%s rate limited: %s", p.name, resp.Status)}
		}
		return &transientError{err: fmt.Errorf("%s rate limited: %s", p.name, resp.Status)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &transientError{err: fmt.Errorf("%s server error: %s", p.name, resp.Status)}
	}
	if len(body) > 0 {
		return fmt.Errorf("%s request failed: %s (%s)", p.name, resp.Status, bytes.TrimSpace(body))
	}
	return fmt.Errorf("%s request failed: %s", p.name, resp.Status)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait, true
		}
	}
	return 0, false
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type retryAfterError struct {
	wait time.Duration
	err  error
}

func (e *retryAfterError) Error() string { return fmt.Sprintf("rate limited; retry after %s", e.wait) }
func (e *retryAfterError) Unwrap() error { return e.err }
