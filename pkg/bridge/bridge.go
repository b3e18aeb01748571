// Package bridge forwards generation requests from a page to the background
// service and retries when the channel between them is torn down.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/types"
)

const (
	// DefaultAttempts is the number of tries before giving up on a channel.
	DefaultAttempts = 3

	// DefaultBackoff is multiplied by the attempt number between tries.
	DefaultBackoff = time.Second
)

// Transport delivers one request to the background service.
type Transport interface {
	RoundTrip(ctx context.Context, req types.GenerationRequest) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Bridge sends requests over a Transport, retrying channel failures.
type Bridge struct {
	transport Transport
	attempts  int
	backoff   time.Duration
	sleep     SleepFunc
	log       *logging.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithAttempts sets the number of tries.
func WithAttempts(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.attempts = n
		}
	}
}

// WithBackoff sets the backoff unit.
func WithBackoff(d time.Duration) Option {
	return func(b *Bridge) { b.backoff = d }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(b *Bridge) { b.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// New creates a bridge over t.
func New(t Transport, opts ...Option) *Bridge {
	b := &Bridge{
		transport: t,
		attempts:  DefaultAttempts,
		backoff:   DefaultBackoff,
		sleep:     Sleep,
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Send delivers req and returns the generated text. Only ChannelUnavailable
// failures are retried, waiting attempt×backoff between tries. When every
// attempt found the channel gone the error is NeedsReload.
func (b *Bridge) Send(ctx context.Context, req types.GenerationRequest) (string, error) {
	var last error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		text, err := b.transport.RoundTrip(ctx, req)
		if err == nil {
			return text, nil
		}
		if types.KindOf(err) != types.KindChannelUnavailable {
			return "", err
		}
		last = err
		b.log.Warnf("channel unavailable (attempt %d/%d): %v", attempt, b.attempts, err)

		if attempt == b.attempts {
			break
		}
		if err := b.sleep(ctx, time.Duration(attempt)*b.backoff); err != nil {
			return "", fmt.Errorf("retry cancelled: %w", err)
		}
	}
	b.log.Errorf("giving up after %d attempts", b.attempts)
	return "", &types.Error{
		Kind:    types.KindNeedsReload,
		Message: fmt.Sprintf("channel unavailable after %d attempts", b.attempts),
		Err:     last,
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
