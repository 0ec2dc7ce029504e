package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling the provider while the breaker
// is open or its half-open trial budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker open")

type BreakerConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold uint32        // consecutive failures to open the circuit
	Cooldown         time.Duration // time spent open before half-open
	HalfOpenMaxCalls uint32
}

// ProtectedNotifier wraps a Notifier with a per-send timeout and a circuit
// breaker so a dead provider does not tie up every worker.
type ProtectedNotifier struct {
	inner   Notifier
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewProtectedNotifier(inner Notifier, cfg BreakerConfig, log *slog.Logger) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls == 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	if log == nil {
		log = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// a cancelled worker is not a provider failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &ProtectedNotifier{
		inner:   inner,
		cb:      gobreaker.NewCircuitBreaker(st),
		timeout: cfg.Timeout,
	}
}

func (n *ProtectedNotifier) SendBorrowingReceipt(ctx context.Context, in BorrowingNotice) error {
	return n.run(ctx, func(ctx context.Context) error {
		return n.inner.SendBorrowingReceipt(ctx, in)
	})
}

func (n *ProtectedNotifier) SendBorrowingReturned(ctx context.Context, in BorrowingNotice) error {
	return n.run(ctx, func(ctx context.Context) error {
		return n.inner.SendBorrowingReturned(ctx, in)
	})
}

// State exposes the breaker state for the worker stats endpoint.
func (n *ProtectedNotifier) State() string {
	return n.cb.State().String()
}

func (n *ProtectedNotifier) run(ctx context.Context, send func(ctx context.Context) error) error {
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err := n.cb.Execute(func() (interface{}, error) {
		return nil, send(sendCtx)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
