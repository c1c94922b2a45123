// v3
// internal/circuitbreaker/kafka.go
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaMessageWriter mirrors the subset of kafka.Writer used by the wrapper.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaOptions are the tunables of a KafkaBreaker.
type KafkaOptions struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	OpenFor          time.Duration
	Timeout          time.Duration
	Backoff          time.Duration
}

// Validate checks the option ranges.
func (o KafkaOptions) Validate() error {
	switch {
	case o.FailureThreshold < 1:
		return fmt.Errorf("cb failure threshold must be >= 1")
	case o.SuccessThreshold < 1:
		return fmt.Errorf("cb success threshold must be >= 1")
	case o.OpenFor <= 0:
		return fmt.Errorf("cb open duration must be > 0")
	case o.Timeout < 0:
		return fmt.Errorf("cb timeout must be >= 0")
	case o.Backoff < 0:
		return fmt.Errorf("cb backoff must be >= 0")
	}
	return nil
}

// KafkaBreaker adds per-attempt timeouts and retry with back-off on top of
// a Breaker.
type KafkaBreaker struct {
	enabled          bool
	failureThreshold int
	timeout          time.Duration
	backoff          time.Duration
	breaker          *Breaker
}

// NewKafkaBreaker validates opts and allocates the breaker when enabled.
func NewKafkaBreaker(name string, opts KafkaOptions, logger *slog.Logger, probe func(ctx context.Context) error) (*KafkaBreaker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	kb := &KafkaBreaker{
		enabled:          opts.Enabled,
		failureThreshold: opts.FailureThreshold,
		timeout:          opts.Timeout,
		backoff:          opts.Backoff,
	}
	if opts.Enabled {
		kb.breaker = New(name, Config{
			MaxFailures:      opts.FailureThreshold,
			ResetTimeout:     opts.OpenFor,
			SuccessesToClose: opts.SuccessThreshold,
		}, logger, probe)
	}
	return kb, nil
}

// Enabled reports whether breaker protections are active.
func (k *KafkaBreaker) Enabled() bool {
	return k != nil && k.enabled && k.breaker != nil
}

// Breaker exposes the underlying breaker for inspection and testing.
func (k *KafkaBreaker) Breaker() *Breaker {
	if k == nil {
		return nil
	}
	return k.breaker
}

// CBKafkaWriter wraps a kafka writer with circuit-breaker protection.
type CBKafkaWriter struct {
	breaker *KafkaBreaker
	writer  kafkaMessageWriter
}

// NewCBKafkaWriter wires breaker protections around writer. A nil or
// disabled breaker passes writes straight through.
func NewCBKafkaWriter(writer kafkaMessageWriter, breaker *KafkaBreaker) *CBKafkaWriter {
	return &CBKafkaWriter{writer: writer, breaker: breaker}
}

// WriteMessages publishes messages with retry/back-off driven by the breaker policy.
func (w *CBKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w == nil || w.writer == nil {
		return errors.New("nil kafka writer")
	}
	if !w.breaker.Enabled() {
		return w.writer.WriteMessages(ctx, msgs...)
	}
	return w.breaker.do(ctx, func(execCtx context.Context) error {
		return w.writer.WriteMessages(execCtx, msgs...)
	})
}

func (k *KafkaBreaker) do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		attemptCtx, cancel := k.withAttemptContext(ctx)
		err := k.breaker.Execute(attemptCtx, op)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempts >= k.failureThreshold {
			return err
		}
		if waitErr := k.waitBackoff(ctx); waitErr != nil {
			return waitErr
		}
	}
}

func (k *KafkaBreaker) withAttemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if k.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, k.timeout)
}

func (k *KafkaBreaker) waitBackoff(ctx context.Context) error {
	if k.backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(k.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
