package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	gh "github.com/google/go-github/v66/github"

	"github.com/sprite-ai/relnotes/internal/source"
)

type response[T any] struct {
	value T
	resp  *gh.Response
}

// call runs one API request with exponential backoff. Rate-limit errors wait
// for the reset time, server errors and transport errors are retried, other
// client errors fail immediately.
func call[T any](ctx context.Context, c *Client, fn func() (T, *gh.Response, error)) (T, *gh.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = 30 * time.Second

	attempt := 0
	r, err := backoff.Retry(ctx, func() (response[T], error) {
		attempt++
		v, resp, err := fn()
		if err != nil {
			return response[T]{}, c.classify(err, attempt)
		}
		return response[T]{value: v, resp: resp}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.cfg.MaxRetries))
	if err != nil {
		var zero T
		return zero, nil, err
	}
	return r.value, r.resp, nil
}

func (c *Client) classify(err error, attempt int) error {
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return c.waitOrGiveUp(err, time.Until(rle.Rate.Reset.Time), attempt)
	}

	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		wait := time.Minute
		if abuse.RetryAfter != nil {
			wait = *abuse.RetryAfter
		}
		return c.waitOrGiveUp(err, wait, attempt)
	}

	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch code := er.Response.StatusCode; {
		case code == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", source.ErrRepoNotFound, er.Message))
		case code >= 500:
			c.log.Debug("retrying after server error", "status", code, "attempt", attempt)
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	c.log.Debug("retrying after transport error", "error", err, "attempt", attempt)
	return err
}

func (c *Client) waitOrGiveUp(err error, wait time.Duration, attempt int) error {
	if wait > c.cfg.MaxRateLimitWait {
		return backoff.Permanent(fmt.Errorf("rate limited for %s: %w", wait.Round(time.Second), err))
	}
	if wait < time.Second {
		wait = time.Second
	}
	c.log.Warn("rate limited, waiting", "wait", wait.Round(time.Second).String(), "attempt", attempt)
	return backoff.RetryAfter(int(wait.Round(time.Second) / time.Second))
}
