// Package httpx issues outgoing HTTP requests with retries, honouring
// Retry-After on 429 and 5xx responses.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/exp/rand"

	"github.com/onnwee/graphvis3d/internal/logger"
	"github.com/onnwee/graphvis3d/internal/metrics"
)

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Attempt int
	Method  string
	URL     string
	Status  int
	Err     error
	Wait    time.Duration
}

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// Options controls DoWithRetry. Zero values pick the defaults.
type Options struct {
	Client      *http.Client
	MaxAttempts int           // total attempts, default 3
	BaseDelay   time.Duration // linear backoff step, default 500ms
	MaxWait     time.Duration // cap on a single Retry-After wait, default 30s
	Observer    Observer
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 30 * time.Second
	}
	return o
}

// DoWithRetry sends the request produced by build until it gets a response
// that is neither 429 nor 5xx, or attempts run out. After the last attempt
// the final response is returned as is. Transport errors are retried unless
// ctx is done.
func DoWithRetry(ctx context.Context, opts Options, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	opts = opts.withDefaults()
	log := logger.WithComponent("httpx")
	observe := func(info AttemptInfo) {
		if opts.Observer != nil {
			opts.Observer(info)
		}
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		info := AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String()}
		last := attempt == opts.MaxAttempts

		resp, err := opts.Client.Do(req)
		var wait time.Duration
		if err != nil {
			metrics.HTTPClientRequests.WithLabelValues("error").Inc()
			info.Err = err
			if last || ctx.Err() != nil {
				observe(info)
				return nil, err
			}
		} else {
			info.Status = resp.StatusCode
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				metrics.HTTPClientRequests.WithLabelValues("success").Inc()
				observe(info)
				return resp, nil
			}
			metrics.HTTPClientRequests.WithLabelValues("retry").Inc()
			if last {
				observe(info)
				return resp, nil
			}
			wait = retryAfter(resp.Header.Get("Retry-After"), opts.MaxWait)
			resp.Body.Close()
			if wait > 0 {
				metrics.HTTPClientRetryAfterWaits.Observe(wait.Seconds())
			}
		}

		if wait == 0 {
			jitter := time.Duration(rand.Int63n(int64(opts.BaseDelay)/4 + 1))
			wait = opts.BaseDelay*time.Duration(attempt) + jitter
		}
		info.Wait = wait
		observe(info)
		metrics.HTTPClientRetries.Inc()
		log.DebugContext(ctx, "retrying request",
			"attempt", attempt, "method", info.Method, "url", info.URL,
			"status", info.Status, "error", info.Err, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, errors.New("httpx: exhausted retries")
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
// It returns zero when the header is absent or already past.
func retryAfter(header string, max time.Duration) time.Duration {
	if header == "" {
		return 0
	}
	var wait time.Duration
	if secs, err := strconv.Atoi(header); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(header); err == nil {
		wait = time.Until(t)
	}
	if wait <= 0 {
		return 0
	}
	return min(wait, max)
}

// Get fetches url with retries and returns the response when its status is
// 200. Other final statuses become errors.
func Get(ctx context.Context, opts Options, url string) (*http.Response, error) {
	resp, err := DoWithRetry(ctx, opts, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("httpx: GET %s: %s", url, resp.Status)
	}
	return resp, nil
}
