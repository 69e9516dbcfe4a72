package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xiaot623/gogo/convo/internal/logger"
)

// InvokerConfig tunes retries and the circuit breaker.
type InvokerConfig struct {
	Attempts  int
	BaseDelay time.Duration

	// Breaker settings. Zero values take the defaults below.
	TripAfter    uint32
	OpenTimeout  time.Duration
	HalfOpenMax  uint32
	CountWindow  time.Duration
	BreakerLabel string
}

// DefaultInvokerConfig returns three attempts with a linear 500ms backoff.
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		Attempts:     3,
		BaseDelay:    500 * time.Millisecond,
		TripAfter:    5,
		OpenTimeout:  30 * time.Second,
		HalfOpenMax:  1,
		CountWindow:  time.Minute,
		BreakerLabel: "model",
	}
}

// Invoker wraps an LLMClient with bounded retries behind a circuit breaker.
type Invoker struct {
	client    LLMClient
	cb        *gobreaker.CircuitBreaker
	attempts  int
	baseDelay time.Duration
	log       *logger.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an invoker around client.
func NewInvoker(client LLMClient, cfg InvokerConfig, log *logger.Logger) *Invoker {
	def := DefaultInvokerConfig()
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.TripAfter == 0 {
		cfg.TripAfter = def.TripAfter
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenMax == 0 {
		cfg.HalfOpenMax = def.HalfOpenMax
	}
	if cfg.CountWindow <= 0 {
		cfg.CountWindow = def.CountWindow
	}
	if cfg.BreakerLabel == "" {
		cfg.BreakerLabel = def.BreakerLabel
	}
	log = log.With("component", "llm_invoker")

	tripAfter := cfg.TripAfter
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.BreakerLabel,
		MaxRequests: cfg.HalfOpenMax,
		Interval:    cfg.CountWindow,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Caller mistakes (4xx) and cancellations say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})

	return &Invoker{
		client:    client,
		cb:        cb,
		attempts:  cfg.Attempts,
		baseDelay: cfg.BaseDelay,
		log:       log,
		sleep:     sleepCtx,
	}
}

// Invoke sends req, retrying transient failures with a delay of
// attempt*BaseDelay. It returns the number of attempts made.
func (i *Invoker) Invoke(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, int, error) {
	var lastErr error
	for attempt := 1; attempt <= i.attempts; attempt++ {
		out, err := i.cb.Execute(func() (interface{}, error) {
			return i.client.CreateChatCompletion(ctx, req)
		})
		if err == nil {
			return out.(*ChatCompletionResponse), attempt, nil
		}
		lastErr = err

		if IsBreakerOpen(err) || !IsTransient(err) || attempt == i.attempts {
			return nil, attempt, err
		}

		delay := time.Duration(attempt) * i.baseDelay
		i.log.Warn("model call failed, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
		if err := i.sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}
	return nil, i.attempts, lastErr
}

// State reports the breaker state.
func (i *Invoker) State() string {
	return i.cb.State().String()
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
