// v0
// internal/agent/trainer.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"nrgchamp/buildingrl/internal/building"
)

const logEvery = 10

// EpisodeResult summarises one finished episode.
type EpisodeResult struct {
	Episode int               `json:"episode"`
	Reward  float64           `json:"reward"`
	Steps   int               `json:"steps"`
	Done    bool              `json:"done"`
	Final   building.Snapshot `json:"final"`
}

// Observer is notified of training progress. Calls happen on the training
// goroutine.
type Observer interface {
	OnStep(episode, step int, tr Transition)
	OnEpisode(res EpisodeResult)
}

// Observers fans notifications out in order.
type Observers []Observer

func (o Observers) OnStep(episode, step int, tr Transition) {
	for _, obs := range o {
		obs.OnStep(episode, step, tr)
	}
}

func (o Observers) OnEpisode(res EpisodeResult) {
	for _, obs := range o {
		obs.OnEpisode(res)
	}
}

// Trainer runs a learner against an environment for a number of episodes.
type Trainer struct {
	env      Env
	learner  Learner
	observer Observer
	log      *slog.Logger
}

// NewTrainer wires a learner to env. observer and log may be nil.
func NewTrainer(e Env, l Learner, observer Observer, log *slog.Logger) (*Trainer, error) {
	if e == nil {
		return nil, errors.New("trainer requires an environment")
	}
	if l == nil {
		return nil, errors.New("trainer requires a learner")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if observer == nil {
		observer = Observers(nil)
	}
	return &Trainer{
		env:      e,
		learner:  l,
		observer: observer,
		log:      log.With(slog.String("component", "trainer"), slog.String("algorithm", l.Name())),
	}, nil
}

// Run trains for the given number of episodes. Cancellation is checked
// between steps; the results gathered so far are returned with ctx.Err().
func (t *Trainer) Run(ctx context.Context, episodes int) ([]EpisodeResult, error) {
	results := make([]EpisodeResult, 0, episodes)
	t.log.Info("training_started", slog.Int("episodes", episodes))
	for ep := 0; ep < episodes; ep++ {
		res, err := t.runEpisode(ctx, ep)
		if err != nil {
			t.log.Error("training_aborted", slog.Int("episode", ep), slog.Any("err", err))
			return results, err
		}
		results = append(results, res)
		t.observer.OnEpisode(res)
		if ep%logEvery == 0 {
			t.log.Info("episode_done",
				slog.Int("episode", ep),
				slog.Float64("reward", res.Reward),
				slog.Int("steps", res.Steps),
			)
		}
	}
	t.log.Info("training_finished", slog.Int("episodes", len(results)))
	return results, nil
}

func (t *Trainer) runEpisode(ctx context.Context, ep int) (EpisodeResult, error) {
	t.learner.Begin(ep)
	state := t.env.Reset()
	res := EpisodeResult{Episode: ep}
	for !res.Done {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		action := t.learner.Act(state)
		next, reward, done, err := t.env.Step(action)
		if err != nil {
			return res, fmt.Errorf("episode %d step %d: %w", ep, res.Steps, err)
		}
		tr := Transition{State: state, Action: action, Reward: reward, Next: next, Done: done}
		t.learner.Learn(tr)
		res.Reward += reward
		res.Steps++
		res.Done = done
		t.observer.OnStep(ep, res.Steps, tr)
		state = next
	}
	t.learner.End()
	res.Final = state
	return res, nil
}
