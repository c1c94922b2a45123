// v1
// internal/publish/kafka.go
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"nrgchamp/buildingrl/internal/circuitbreaker"
)

// KafkaConfig encapsulates the options required to publish to Kafka.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	SnapshotTopic string
	EpisodeTopic  string
	RunID         string
	Breaker       circuitbreaker.KafkaOptions
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaWriteCloser interface {
	Close() error
}

type publishRequest struct {
	topic string
	key   []byte
	value []byte
	kind  string
}

// Publisher asynchronously publishes snapshots and episode records.
type Publisher struct {
	cfg       KafkaConfig
	log       *slog.Logger
	rec       Recorder
	writer    kafkaMessageWriter
	closer    kafkaWriteCloser
	breaker   *circuitbreaker.KafkaBreaker
	enabled   bool
	queue     chan publishRequest
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

const (
	publisherQueueSize = 256
	kafkaSinkName      = "kafka"
	kafkaBreakerName   = "buildingrl-kafka-writer"
)

var (
	errPublisherNilLogger  = errors.New("publisher requires a logger")
	errPublisherNilWriter  = errors.New("publisher requires a writer")
	errPublisherNotStarted = errors.New("kafka publisher not started")
	errPublisherStopped    = errors.New("kafka publisher stopped")
)

// NewPublisher constructs a Publisher backed by a Kafka writer guarded by
// the circuit breaker. A disabled config yields a no-op publisher.
func NewPublisher(cfg KafkaConfig, log *slog.Logger, rec Recorder) (*Publisher, error) {
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if !cfg.Enabled {
		log.Info("kafka_publisher_disabled")
		return &Publisher{cfg: cfg, log: log, rec: nopRecorder{}}, nil
	}
	if strings.TrimSpace(cfg.SnapshotTopic) == "" || strings.TrimSpace(cfg.EpisodeTopic) == "" {
		return nil, fmt.Errorf("snapshot and episode topics must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	baseWriter := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
		Balancer:               &kafka.Hash{},
	}
	breaker, err := circuitbreaker.NewKafkaBreaker(kafkaBreakerName, cfg.Breaker, log, nil)
	if err != nil {
		return nil, fmt.Errorf("kafka breaker: %w", err)
	}
	if breaker.Enabled() {
		log.Info("kafka_publisher_cb_enabled", slog.String("name", kafkaBreakerName))
	} else {
		log.Info("kafka_publisher_cb_disabled", slog.String("name", kafkaBreakerName))
	}
	wrapped := circuitbreaker.NewCBKafkaWriter(baseWriter, breaker)
	return newPublisherWithWriter(cfg, log, rec, wrapped, baseWriter, breaker)
}

// newPublisherWithWriter wires the provided writer into the publisher. It is used in tests.
func newPublisherWithWriter(cfg KafkaConfig, log *slog.Logger, rec Recorder, writer kafkaMessageWriter, closer kafkaWriteCloser, breaker *circuitbreaker.KafkaBreaker) (*Publisher, error) {
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if writer == nil {
		return nil, errPublisherNilWriter
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	p := &Publisher{
		cfg:     cfg,
		log:     log.With(slog.String("component", "kafka_publisher")),
		rec:     rec,
		writer:  writer,
		closer:  closer,
		breaker: breaker,
		enabled: cfg.Enabled,
	}
	if p.enabled {
		p.queue = make(chan publishRequest, publisherQueueSize)
	}
	return p, nil
}

// Breaker exposes the circuit breaker, nil when disabled.
func (p *Publisher) Breaker() *circuitbreaker.Breaker {
	return p.breaker.Breaker()
}

func (p *Publisher) Name() string { return kafkaSinkName }

// Start launches the background publishing loop.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.enabled {
		p.log.Info("kafka_publisher_start_skipped", slog.String("reason", "disabled"))
		return nil
	}
	if ctx == nil {
		return errors.New("context must not be nil")
	}
	p.startOnce.Do(func() {
		p.runCtx, p.cancel = context.WithCancel(ctx)
		p.started.Store(true)
		p.wg.Add(1)
		go p.run()
		p.log.Info("kafka_publisher_started",
			slog.String("snapshot_topic", p.cfg.SnapshotTopic),
			slog.String("episode_topic", p.cfg.EpisodeTopic),
		)
	})
	if !p.started.Load() {
		return errPublisherNotStarted
	}
	return nil
}

// Stop requests the publisher to shut down and waits for queued messages to drain.
func (p *Publisher) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	var stopErr error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
		if p.closer != nil {
			if err := p.closer.Close(); err != nil {
				p.log.Error("kafka_publisher_close_err", slog.Any("err", err))
			}
		}
		if stopErr != nil {
			p.log.Error("kafka_publisher_stop_err", slog.Any("err", stopErr))
		}
		p.log.Info("kafka_publisher_stopped")
	})
	return stopErr
}

// Send implements Sink by queueing env on the snapshot topic.
func (p *Publisher) Send(ctx context.Context, env Envelope) error {
	return p.enqueue(ctx, p.cfg.SnapshotTopic, "snapshot", env)
}

// PublishEpisode queues an episode record on the episode topic.
func (p *Publisher) PublishEpisode(ctx context.Context, rec EpisodeRecord) error {
	return p.enqueue(ctx, p.cfg.EpisodeTopic, "episode", rec)
}

func (p *Publisher) enqueue(ctx context.Context, topic, kind string, payload any) error {
	if !p.enabled {
		return nil
	}
	if !p.started.Load() {
		p.log.Error("kafka_publish_not_started", slog.String("kind", kind))
		return errPublisherNotStarted
	}
	value, err := json.Marshal(payload)
	if err != nil {
		p.rec.Publish(kafkaSinkName, resultFail)
		p.log.Error("kafka_publish_encode_err", slog.Any("err", err), slog.String("kind", kind))
		return err
	}
	req := publishRequest{topic: topic, key: []byte(p.cfg.RunID), value: value, kind: kind}
	select {
	case p.queue <- req:
		return nil
	case <-ctx.Done():
		p.rec.Publish(kafkaSinkName, resultFail)
		return ctx.Err()
	case <-p.runCtx.Done():
		p.rec.Publish(kafkaSinkName, resultFail)
		return errPublisherStopped
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			p.drain()
			p.started.Store(false)
			p.log.Info("kafka_publisher_loop_exit")
			return
		case req := <-p.queue:
			p.deliver(p.runCtx, req)
		}
	}
}

// drain flushes what is still queued. The run context is already
// cancelled at this point, so writes use a fresh one.
func (p *Publisher) drain() {
	for {
		select {
		case req := <-p.queue:
			p.deliver(context.Background(), req)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, req publishRequest) {
	err := p.writer.WriteMessages(ctx, kafka.Message{Topic: req.topic, Key: req.key, Value: req.value})
	if err != nil {
		p.rec.Publish(kafkaSinkName, resultFail)
		p.log.Error("kafka_publish_err", slog.Any("err", err), slog.String("kind", req.kind))
		return
	}
	p.rec.Publish(kafkaSinkName, resultOK)
	p.log.Debug("kafka_publish_success", slog.String("kind", req.kind), slog.String("topic", req.topic))
}
