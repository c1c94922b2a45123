// v1
// internal/circuitbreaker/kafka_test.go
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestKafkaOptionsValidate(t *testing.T) {
	base := KafkaOptions{FailureThreshold: 1, SuccessThreshold: 1, OpenFor: time.Second}
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := base
	bad.FailureThreshold = 0
	if _, err := NewKafkaBreaker("bad", bad, nil, nil); err == nil {
		t.Fatalf("expected failure threshold error")
	}
	bad = base
	bad.OpenFor = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected open duration error")
	}
}

func TestCBKafkaWriterStateTransitions(t *testing.T) {
	kb, err := NewKafkaBreaker("writer-breaker", KafkaOptions{
		Enabled:          true,
		FailureThreshold: 2,
		SuccessThreshold: 2,
		OpenFor:          time.Minute,
	}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	kb.Breaker().now = clock.Now
	var transitions []State
	kb.Breaker().OnStateChange(func(_ string, s State) { transitions = append(transitions, s) })

	stub := &stubKafkaWriter{failuresBeforeSuccess: 2}
	writer := NewCBKafkaWriter(stub, kb)
	ctx := context.Background()
	msg := kafka.Message{Value: []byte("payload")}

	if err := writer.WriteMessages(ctx, msg); err == nil {
		t.Fatalf("expected first write to exhaust retries")
	}
	if kb.Breaker().State() != Open {
		t.Fatalf("expected open breaker, got %v", kb.Breaker().State())
	}
	if err := writer.WriteMessages(ctx, msg); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected fast-fail while open, got %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("open breaker must not reach the writer, got %d calls", stub.calls)
	}

	clock.Advance(2 * time.Minute)
	if err := writer.WriteMessages(ctx, msg); err != nil {
		t.Fatalf("unexpected error on half-open write: %v", err)
	}
	if kb.Breaker().State() != HalfOpen {
		t.Fatalf("expected breaker to remain half-open after first success, got %v", kb.Breaker().State())
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		t.Fatalf("second write should succeed, got %v", err)
	}
	if kb.Breaker().State() != Closed {
		t.Fatalf("expected breaker closed after second success, got %v", kb.Breaker().State())
	}

	want := []State{Open, HalfOpen, Closed}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("probe", Config{MaxFailures: 1, ResetTimeout: time.Second, SuccessesToClose: 1}, nil, nil)
	clock := &fakeClock{now: time.Unix(0, 0)}
	b.now = clock.Now
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	if err := b.Execute(context.Background(), fail); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	clock.Advance(2 * time.Second)
	if err := b.Execute(context.Background(), fail); !errors.Is(err, boom) {
		t.Fatalf("expected boom from half-open attempt, got %v", err)
	}
	if b.State() != Open {
		t.Fatalf("expected reopen, got %v", b.State())
	}
}

func TestCBKafkaWriterDisabled(t *testing.T) {
	kb, err := NewKafkaBreaker("off", KafkaOptions{FailureThreshold: 3, SuccessThreshold: 1, OpenFor: time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kb.Enabled() {
		t.Fatalf("expected breaker disabled")
	}
	stub := &stubKafkaWriter{failuresBeforeSuccess: 1}
	writer := NewCBKafkaWriter(stub, kb)
	if err := writer.WriteMessages(context.Background(), kafka.Message{}); err == nil {
		t.Fatalf("expected the single failure to surface")
	}
	if stub.calls != 1 {
		t.Fatalf("expected single call when breaker disabled, got %d", stub.calls)
	}
}

type stubKafkaWriter struct {
	mu                    sync.Mutex
	calls                 int
	failuresBeforeSuccess int
}

func (s *stubKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.calls++
	if s.calls <= s.failuresBeforeSuccess {
		return errors.New("synthetic failure")
	}
	return nil
}
