// v1
// internal/env/environment.go
package env

import (
	"fmt"
	"io"
	"log/slog"

	"nrgchamp/buildingrl/internal/building"
)

// DefaultMaxSteps is the truncation budget: an episode ends once more than
// this many steps have been taken since the last reset.
const DefaultMaxSteps = 500

// Outcome describes why an episode is or is not over.
type Outcome int

const (
	Running Outcome = iota
	Goal
	Truncated
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Goal:
		return "goal"
	case Truncated:
		return "truncated"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Option customises an Environment.
type Option func(*Environment)

// WithMaxSteps overrides DefaultMaxSteps. Non-positive values are ignored.
func WithMaxSteps(n int) Option {
	return func(e *Environment) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger sets the logger used for episode events.
func WithLogger(log *slog.Logger) Option {
	return func(e *Environment) {
		if log != nil {
			e.log = log
		}
	}
}

// Environment drives one Building through reset/step episodes.
type Environment struct {
	building *building.Building
	initial  *building.Building

	steps    int
	maxSteps int
	outcome  Outcome

	log *slog.Logger
}

// New wraps b and keeps a deep copy of its current state for Reset. The
// environment takes ownership of b.
func New(b *building.Building, opts ...Option) (*Environment, error) {
	if b == nil || b.NumFloors() == 0 {
		return nil, ErrEmptyBuilding
	}
	e := &Environment{
		building: b,
		initial:  b.Clone(),
		maxSteps: DefaultMaxSteps,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(slog.String("component", "environment"))
	return e, nil
}

// Reset restores the building captured by New and starts a new episode.
func (e *Environment) Reset() *building.Building {
	e.building.Restore(e.initial)
	e.steps = 0
	e.outcome = Running
	return e.building
}

// Step applies a, advances the step counter and returns the building, the
// shaped reward and whether the episode ended. Terminal steps always yield a
// reward of 0. Invalid actions leave the building and counter untouched.
func (e *Environment) Step(a Action) (*building.Building, float64, bool, error) {
	if e.outcome != Running {
		return e.building, 0, true, ErrEpisodeTerminated
	}
	if !a.Kind.Valid() {
		return e.building, 0, false, fmt.Errorf("step %s: %w", a, ErrUnknownAction)
	}
	var f *building.Floor
	if a.Kind != NoOp {
		var err error
		if f, err = e.building.Floor(a.Floor); err != nil {
			return e.building, 0, false, fmt.Errorf("step %s: %w", a, err)
		}
	}
	prev := takeAggregates(e.building)

	switch a.Kind {
	case ToggleLight:
		f.SwitchLights()
	case RaiseTemp:
		f.IncreaseTemp()
	case LowerTemp:
		f.DecreaseTemp()
	}
	e.steps++

	cur := takeAggregates(e.building)
	e.outcome = e.evaluate(cur)
	if e.outcome != Running {
		e.log.Info("episode_terminated",
			slog.String("outcome", e.outcome.String()),
			slog.Int("steps", e.steps),
			slog.Float64("energy", building.TenthsToKWh(cur.energy)),
			slog.Float64("comfort", cur.comfort),
		)
		return e.building, 0, true, nil
	}
	return e.building, computeReward(prev, cur), false, nil
}

func (e *Environment) evaluate(cur aggregates) Outcome {
	if cur.comfortDefined && cur.energy < cur.expected && cur.comfort >= goalComfort {
		return Goal
	}
	if e.steps > e.maxSteps {
		return Truncated
	}
	return Running
}

// Building returns the live building. Callers must not mutate it outside
// Step unless they own the environment.
func (e *Environment) Building() *building.Building { return e.building }

func (e *Environment) Steps() int       { return e.steps }
func (e *Environment) MaxSteps() int    { return e.maxSteps }
func (e *Environment) Outcome() Outcome { return e.outcome }
func (e *Environment) Terminated() bool { return e.outcome != Running }

// NumActions is the size of the flat action space.
func (e *Environment) NumActions() int {
	return e.building.NumFloors() * ActionsPerFloor
}

// NumFloors is a shorthand for Building().NumFloors().
func (e *Environment) NumFloors() int { return e.building.NumFloors() }

// aggregates holds energy in tenths of a kWh so threshold comparisons are
// exact.
type aggregates struct {
	energy         int
	expected       int
	comfort        float64
	comfortDefined bool
}

func takeAggregates(b *building.Building) aggregates {
	agg := aggregates{energy: b.TotalEnergyTenths(), expected: b.ExpectedEnergyTenths()}
	if avg, err := b.AverageComfort(); err == nil {
		agg.comfort, agg.comfortDefined = avg, true
	}
	return agg
}
