// v2
// internal/circuitbreaker/breaker.go
package circuitbreaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // how long to stay open before probing
	SuccessesToClose int           // successes required in HalfOpen before closing
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	recentFails int
	successes   int
	openedAt    time.Time
	onChange    func(name string, s State)

	probe func(ctx context.Context) error
	now   func() time.Time
}

// New builds a breaker. probe is optional and runs once before the first
// operation allowed through after ResetTimeout.
func New(name string, cfg Config, logger *slog.Logger, probe func(ctx context.Context) error) *Breaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.SuccessesToClose < 1 {
		cfg.SuccessesToClose = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With(slog.String("breaker", name)),
		state:  Closed,
		probe:  probe,
		now:    time.Now,
	}
	b.logger.Info("breaker_created", "maxFailures", cfg.MaxFailures, "resetTimeout", cfg.ResetTimeout.String())
	return b
}

// OnStateChange registers fn to be called after every transition.
func (b *Breaker) OnStateChange(fn func(name string, s State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Execute runs op unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	openedAt := b.openedAt
	b.mu.Unlock()

	if state == Open {
		if b.now().Sub(openedAt) < b.cfg.ResetTimeout {
			b.logger.Warn("breaker_fast_fail", "since_open", b.now().Sub(openedAt).String())
			return ErrOpen
		}
		if err := b.halfOpen(ctx); err != nil {
			return err
		}
	}

	if err := op(ctx); err != nil {
		b.onFailure(err)
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) halfOpen(ctx context.Context) error {
	b.mu.Lock()
	b.transition(HalfOpen)
	b.successes = 0
	b.mu.Unlock()
	if b.probe == nil {
		return nil
	}
	if err := b.probe(ctx); err != nil {
		b.logger.Warn("breaker_probe_failed", "error", err.Error())
		b.mu.Lock()
		b.openedAt = b.now()
		b.transition(Open)
		b.mu.Unlock()
		return ErrOpen
	}
	b.logger.Info("breaker_probe_ok")
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails = 0
	if b.state != HalfOpen {
		return
	}
	b.successes++
	if b.successes >= b.cfg.SuccessesToClose {
		b.transition(Closed)
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails++
	b.logger.Warn("operation_failure", "failures", b.recentFails, "error", err.Error())
	if b.state == HalfOpen || b.recentFails >= b.cfg.MaxFailures {
		b.openedAt = b.now()
		b.transition(Open)
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.logger.Info("breaker_state_change", "from", from.String(), "to", to.String())
	if b.onChange != nil {
		b.onChange(b.name, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Name() string { return b.name }
