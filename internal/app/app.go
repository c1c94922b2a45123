// v0
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"nrgchamp/buildingrl/internal/agent"
	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/config"
	"nrgchamp/buildingrl/internal/env"
	"nrgchamp/buildingrl/internal/feed"
	"nrgchamp/buildingrl/internal/httpapi"
	"nrgchamp/buildingrl/internal/logging"
	"nrgchamp/buildingrl/internal/metrics"
	"nrgchamp/buildingrl/internal/publish"
	"nrgchamp/buildingrl/internal/session"
)

// Application wires the simulated building, its environment and session,
// the snapshot pipeline towards the display sinks and the HTTP surface.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	logFile *os.File
	runID   string

	metrics   *metrics.Metrics
	env       *env.Environment
	session   *session.Session
	learner   agent.Learner
	frames    *feed.Feed[session.Frame]
	publisher *publish.Publisher
	mqtt      *publish.MQTTSink
	forwarder *publish.Forwarder
	handlers  *httpapi.Handlers
	server    *httpapi.Server
}

// NewBuilding assembles a building from floor descriptions.
func NewBuilding(outside int, floors []config.FloorConfig) (*building.Building, error) {
	b := building.New(outside)
	for i, fc := range floors {
		f, err := building.NewFloor(fc.Occupants, fc.LightOn, fc.Temperature)
		if err != nil {
			return nil, fmt.Errorf("floor %d: %w", i, err)
		}
		if err := b.AddFloor(f); err != nil {
			return nil, fmt.Errorf("floor %d: %w", i, err)
		}
	}
	return b, nil
}

// New prepares a fully wired instance. Console output goes to console in
// addition to the configured log file.
func New(cfg config.Config, console io.Writer) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if console == nil {
		console = io.Discard
	}
	logger, lf, err := logging.New(console, cfg.LogFilePath, slog.LevelInfo)
	if err != nil {
		return nil, err
	}
	a := &Application{
		cfg:     cfg,
		logger:  logger,
		logFile: lf,
		runID:   uuid.NewString(),
		metrics: metrics.New(),
	}
	if err := a.init(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) init() error {
	cfg := a.cfg
	b, err := NewBuilding(cfg.OutsideTemperature, cfg.Floors)
	if err != nil {
		return fmt.Errorf("building init: %w", err)
	}
	a.env, err = env.New(b, env.WithMaxSteps(cfg.MaxSteps), env.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("environment init: %w", err)
	}
	params := agent.Params{Gamma: cfg.Gamma, StepSize: cfg.StepSize, Epsilon: cfg.Epsilon, Temperature: cfg.Temperature}
	a.learner, err = agent.NewLearner(cfg.Algorithm, b.NumFloors(), params, agent.NewRand(cfg.Seed))
	if err != nil {
		return fmt.Errorf("learner init: %w", err)
	}

	a.frames = feed.New[session.Frame](cfg.FeedCapacity)
	a.frames.OnDrop(a.metrics.FrameDropped)
	a.session = session.New(a.env, a.onFrame, a.logger)

	a.publisher, err = publish.NewPublisher(publish.KafkaConfig{
		Enabled:       cfg.KafkaEnabled,
		Brokers:       cfg.KafkaBrokers,
		SnapshotTopic: cfg.SnapshotTopic,
		EpisodeTopic:  cfg.EpisodeTopic,
		RunID:         a.runID,
		Breaker:       cfg.Breaker,
	}, a.logger, a.metrics)
	if err != nil {
		return fmt.Errorf("kafka publisher init: %w", err)
	}
	if br := a.publisher.Breaker(); br != nil {
		br.OnStateChange(a.metrics.SetCircuitBreakerState)
		a.metrics.SetCircuitBreakerState(br.Name(), br.State())
	}

	var sinks []publish.Sink
	if cfg.KafkaEnabled {
		sinks = append(sinks, a.publisher)
	}
	if strings.TrimSpace(cfg.MQTTBroker) != "" {
		client, err := publish.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return fmt.Errorf("mqtt init: %w", err)
		}
		a.mqtt, err = publish.NewMQTTSink(client, cfg.MQTTTopicPrefix, a.runID, a.metrics, a.logger)
		if err != nil {
			client.Disconnect(0)
			return fmt.Errorf("mqtt sink init: %w", err)
		}
		sinks = append(sinks, a.mqtt)
	}
	a.forwarder = publish.NewForwarder(a.frames, a.runID, sinks, a.logger)

	a.handlers = &httpapi.Handlers{Log: a.logger.With(slog.String("component", "api")), Session: a.session}
	a.server = httpapi.NewServer(cfg.ListenAddress, httpapi.Options{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}, a.logger, a.handlers, a.metrics)

	a.logger.Info("app_initialised",
		slog.String("run_id", a.runID),
		slog.Int("floors", b.NumFloors()),
		slog.String("algorithm", a.learner.Name()),
		slog.Int("sinks", len(sinks)),
	)
	return nil
}

// onFrame runs under the session lock for every completed mutation.
func (a *Application) onFrame(f session.Frame) {
	a.metrics.ObserveBuilding(f.Building)
	if err := a.frames.Publish(f); err != nil {
		a.logger.Debug("frame_after_close", slog.Int("step", f.Step))
	}
}

func (a *Application) Logger() *slog.Logger      { return a.logger }
func (a *Application) RunID() string             { return a.runID }
func (a *Application) Session() *session.Session { return a.session }
func (a *Application) Metrics() *metrics.Metrics { return a.metrics }

// Handler exposes the HTTP handler without listening.
func (a *Application) Handler() http.Handler { return a.server.HTTP.Handler }

// startPipeline launches the publisher and the forwarder. The returned
// channel yields the forwarder's exit error.
func (a *Application) startPipeline(ctx context.Context) (<-chan error, error) {
	if err := a.publisher.Start(ctx); err != nil {
		return nil, fmt.Errorf("kafka publisher start: %w", err)
	}
	fwdCh := make(chan error, 1)
	go func() {
		fwdCh <- a.forwarder.Run(context.WithoutCancel(ctx))
	}()
	return fwdCh, nil
}

// stopPipeline pushes the termination marker, waits for the forwarder to
// consume it and drains the publisher.
func (a *Application) stopPipeline(fwdCh <-chan error) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.frames.Close()
	var fwdErr error
	select {
	case fwdErr = <-fwdCh:
	case <-ctx.Done():
		fwdErr = fmt.Errorf("forwarder did not stop: %w", ctx.Err())
	}
	if fwdErr != nil {
		a.logger.Error("forwarder_error", slog.Any("err", fwdErr))
	}
	if err := a.publisher.Stop(ctx); err != nil && fwdErr == nil {
		fwdErr = err
	}
	a.logger.Info("pipeline_stopped",
		slog.Uint64("frames", a.forwarder.Forwarded()),
		slog.Uint64("dropped", a.frames.Dropped()),
	)
	return fwdErr
}

// Train runs the configured number of episodes through the session so
// every step reaches the display sinks.
func (a *Application) Train(ctx context.Context) ([]agent.EpisodeResult, error) {
	fwdCh, err := a.startPipeline(ctx)
	if err != nil {
		return nil, err
	}
	observers := agent.Observers{
		a.metrics,
		publish.NewEpisodeObserver(ctx, a.publisher, a.runID, a.learner.Name(), a.logger),
	}
	trainer, err := agent.NewTrainer(a.session, a.learner, observers, a.logger)
	if err != nil {
		_ = a.stopPipeline(fwdCh)
		return nil, err
	}
	results, runErr := trainer.Run(ctx, a.cfg.Episodes)
	stopErr := a.stopPipeline(fwdCh)

	goals := 0
	total := 0.0
	for _, r := range results {
		total += r.Reward
		if env.GoalReached(r.Final) {
			goals++
		}
	}
	if len(results) > 0 {
		a.logger.Info("training_summary",
			slog.Int("episodes", len(results)),
			slog.Int("goals", goals),
			slog.Float64("mean_reward", total/float64(len(results))),
		)
	}
	if runErr != nil {
		return results, runErr
	}
	return results, stopErr
}

// Serve exposes the HTTP API until ctx is cancelled or the server fails.
// With autopilot set the learner drives the building at the configured
// step interval alongside any manual operations.
func (a *Application) Serve(ctx context.Context, autopilot bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fwdCh, err := a.startPipeline(ctx)
	if err != nil {
		return err
	}
	a.session.Reset()

	httpCh := make(chan error, 1)
	go func() {
		a.handlers.SetReady(true)
		httpCh <- a.server.Start()
	}()

	var pilotCh chan error
	if autopilot && a.cfg.StepInterval > 0 {
		pilotCh = make(chan error, 1)
		go func() {
			pilotCh <- a.autopilot(ctx)
		}()
	}

	var httpErr error
	select {
	case err := <-httpCh:
		httpCh = nil
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http_server_error", slog.Any("err", err))
			httpErr = err
		}
	case err := <-pilotCh:
		pilotCh = nil
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("autopilot_error", slog.Any("err", err))
			httpErr = err
		}
	case <-ctx.Done():
		a.logger.Info("shutdown_signal")
	}
	cancel()
	a.handlers.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Error("server_shutdown_failed", slog.Any("err", err))
		if httpErr == nil {
			httpErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	shutdownCancel()
	if httpCh != nil {
		if err := <-httpCh; err != nil && !errors.Is(err, http.ErrServerClosed) && httpErr == nil {
			httpErr = err
		}
	}
	if pilotCh != nil {
		<-pilotCh
	}

	if err := a.stopPipeline(fwdCh); err != nil && httpErr == nil {
		httpErr = err
	}
	if httpErr != nil {
		return httpErr
	}
	a.logger.Info("shutdown_complete")
	return nil
}

// autopilot lets the learner act once per step interval, resetting the
// session whenever an episode ends.
func (a *Application) autopilot(ctx context.Context) error {
	log := a.logger.With(slog.String("component", "autopilot"))
	ticker := time.NewTicker(a.cfg.StepInterval)
	defer ticker.Stop()

	episode := a.session.Status().Episode
	a.learner.Begin(episode)
	res := agent.EpisodeResult{Episode: episode}
	log.Info("autopilot_started", slog.Duration("interval", a.cfg.StepInterval))
	for {
		select {
		case <-ctx.Done():
			log.Info("autopilot_stopped", slog.Int("episode", episode))
			return ctx.Err()
		case <-ticker.C:
		}

		state := a.session.Snapshot()
		action := a.learner.Act(state)
		next, reward, done, err := a.session.Step(action)
		if errors.Is(err, env.ErrEpisodeTerminated) {
			// Ended through the HTTP API; start over.
			done = true
		} else if err != nil {
			return fmt.Errorf("autopilot step %s: %w", action, err)
		} else {
			tr := agent.Transition{State: state, Action: action, Reward: reward, Next: next, Done: done}
			a.learner.Learn(tr)
			a.metrics.OnStep(episode, res.Steps, tr)
			res.Reward += reward
			res.Steps++
		}
		if !done {
			continue
		}
		a.learner.End()
		res.Done = true
		res.Final = next
		a.metrics.OnEpisode(res)
		log.Info("autopilot_episode_done",
			slog.Int("episode", episode),
			slog.Float64("reward", res.Reward),
			slog.Int("steps", res.Steps),
		)
		a.session.Reset()
		episode = a.session.Status().Episode
		a.learner.Begin(episode)
		res = agent.EpisodeResult{Episode: episode}
	}
}

// Close flushes and closes resources owned by the application instance.
func (a *Application) Close() error {
	if a.mqtt != nil {
		a.mqtt.Close()
		a.mqtt = nil
	}
	if a.logFile == nil {
		return nil
	}
	if err := a.logFile.Close(); err != nil {
		return err
	}
	a.logFile = nil
	return nil
}
