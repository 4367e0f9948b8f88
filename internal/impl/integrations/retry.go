package integrations

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// CallPolicy bounds how often and how persistently a model is called.
// A zero RequestsPerMinute disables rate limiting and a zero MaxRetries
// disables retries.
type CallPolicy struct {
	RequestsPerMinute int
	MaxRetries        int
	MaxElapsed        time.Duration
}

// caller applies a CallPolicy around one model request.
type caller struct {
	policy  CallPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newCaller(policy CallPolicy, logger *zap.Logger) *caller {
	c := &caller{policy: policy, logger: logger}
	if policy.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(policy.RequestsPerMinute)), 1)
	}
	return c
}

// do runs op, waiting on the rate limiter before every attempt and retrying
// transient failures with exponential backoff.
func (c *caller) do(ctx context.Context, op func() error) error {
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isTransient(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("Transient model error, retrying", zap.Error(err))
		return err
	}

	if c.policy.MaxRetries <= 0 {
		return unwrapPermanent(operation())
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = c.policy.MaxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.policy.MaxRetries)), ctx)

	return backoff.Retry(operation, policy)
}

func unwrapPermanent(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

// isTransient reports whether a provider error is worth retrying: rate limits
// and server side failures are, everything else is not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return transientStatus(genaiErr.Code)
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) {
		return transientStatus(genaiErrPtr.Code)
	}

	// Dropped connections, refused dials and DNS failures.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
