// v0
// internal/publish/forwarder.go
package publish

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nrgchamp/buildingrl/internal/agent"
	"nrgchamp/buildingrl/internal/env"
	"nrgchamp/buildingrl/internal/feed"
	"nrgchamp/buildingrl/internal/session"
)

// Forwarder is the display-side consumer of the frame feed. It numbers
// frames in the order it reads them and fans each one out to every sink.
// Sinks count their own successes and failures.
type Forwarder struct {
	feed  *feed.Feed[session.Frame]
	sinks []Sink
	runID string
	log   *slog.Logger

	seq uint64
}

func NewForwarder(f *feed.Feed[session.Frame], runID string, sinks []Sink, log *slog.Logger) *Forwarder {
	return &Forwarder{
		feed:  f,
		sinks: sinks,
		runID: runID,
		log:   log.With(slog.String("component", "forwarder")),
	}
}

// Run consumes frames until the feed's termination marker, returning nil,
// or until ctx is done.
func (f *Forwarder) Run(ctx context.Context) error {
	f.log.Info("forwarder_started", slog.Int("sinks", len(f.sinks)))
	for {
		frame, err := f.feed.Next(ctx)
		if errors.Is(err, feed.ErrClosed) {
			f.log.Info("forwarder_stopped", slog.Uint64("frames", f.seq), slog.Uint64("dropped", f.feed.Dropped()))
			return nil
		}
		if err != nil {
			return err
		}
		f.seq++
		out := Envelope{RunID: f.runID, Seq: f.seq, Frame: frame}
		for _, sink := range f.sinks {
			if err := sink.Send(ctx, out); err != nil {
				f.log.Warn("forward_failed", slog.String("sink", sink.Name()), slog.Uint64("seq", out.Seq), slog.Any("err", err))
			}
		}
	}
}

// Forwarded reports how many frames have been read so far.
func (f *Forwarder) Forwarded() uint64 { return f.seq }

// EpisodeObserver publishes an EpisodeRecord for every finished episode.
type EpisodeObserver struct {
	ctx       context.Context
	pub       *Publisher
	runID     string
	algorithm string
	log       *slog.Logger
}

var _ agent.Observer = (*EpisodeObserver)(nil)

func NewEpisodeObserver(ctx context.Context, pub *Publisher, runID, algorithm string, log *slog.Logger) *EpisodeObserver {
	return &EpisodeObserver{ctx: ctx, pub: pub, runID: runID, algorithm: algorithm, log: log}
}

func (o *EpisodeObserver) OnStep(int, int, agent.Transition) {}

func (o *EpisodeObserver) OnEpisode(res agent.EpisodeResult) {
	outcome := env.Truncated.String()
	if env.GoalReached(res.Final) {
		outcome = env.Goal.String()
	}
	rec := EpisodeRecord{
		RunID:     o.runID,
		Algorithm: o.algorithm,
		Episode:   res.Episode,
		Reward:    res.Reward,
		Steps:     res.Steps,
		Outcome:   outcome,
		Final:     res.Final,
		At:        time.Now().UTC(),
	}
	if err := o.pub.PublishEpisode(o.ctx, rec); err != nil {
		o.log.Warn("episode_publish_failed", slog.Int("episode", res.Episode), slog.Any("err", err))
	}
}
