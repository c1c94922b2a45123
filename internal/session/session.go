// v0
// internal/session/session.go
package session

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/env"
)

// Source tells consumers what produced a frame.
type Source string

const (
	SourceReset   Source = "reset"
	SourceAgent   Source = "agent"
	SourceManual  Source = "manual"
	SourceAmbient Source = "ambient"
)

// Frame is a complete, immutable view of the building after one mutation.
type Frame struct {
	Episode    int               `json:"episode"`
	Step       int               `json:"step"`
	Source     Source            `json:"source"`
	Action     string            `json:"action,omitempty"`
	Reward     float64           `json:"reward"`
	Terminated bool              `json:"terminated"`
	Outcome    string            `json:"outcome"`
	Building   building.Snapshot `json:"building"`
	At         time.Time         `json:"at"`
}

// Op is a manual floor operation.
type Op int

const (
	OpToggleLight Op = iota + 1
	OpRaiseTemp
	OpLowerTemp
	OpAddOccupant
	OpRemoveOccupant
)

func (o Op) String() string {
	switch o {
	case OpToggleLight:
		return "lights"
	case OpRaiseTemp:
		return "temperature/up"
	case OpLowerTemp:
		return "temperature/down"
	case OpAddOccupant:
		return "occupants/add"
	case OpRemoveOccupant:
		return "occupants/remove"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// ParseOp maps the route suffix used by the HTTP API to an Op.
func ParseOp(s string) (Op, error) {
	switch strings.Trim(strings.ToLower(s), "/ ") {
	case "lights", "light":
		return OpToggleLight, nil
	case "temperature/up":
		return OpRaiseTemp, nil
	case "temperature/down":
		return OpLowerTemp, nil
	case "occupants/add":
		return OpAddOccupant, nil
	case "occupants/remove":
		return OpRemoveOccupant, nil
	default:
		return 0, fmt.Errorf("operation %q: %w", s, env.ErrUnknownAction)
	}
}

// Status is the episode bookkeeping of a session.
type Status struct {
	Episode  int    `json:"episode"`
	Steps    int    `json:"steps"`
	MaxSteps int    `json:"maxSteps"`
	Outcome  string `json:"outcome"`
}

// Session serialises every access to one Environment. Agent steps and
// manual operations share the same floor mutators and the same lock, and
// each completed mutation is reported to the hook as a Frame.
type Session struct {
	mu      sync.Mutex
	env     *env.Environment
	hook    func(Frame)
	episode int
	log     *slog.Logger
	now     func() time.Time
}

// New wraps e. hook may be nil.
func New(e *env.Environment, hook func(Frame), log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if hook == nil {
		hook = func(Frame) {}
	}
	return &Session{
		env:  e,
		hook: hook,
		log:  log.With(slog.String("component", "session")),
		now:  time.Now,
	}
}

// Reset starts a new episode.
func (s *Session) Reset() building.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episode++
	snap := s.env.Reset().Snapshot()
	s.emit(Frame{Source: SourceReset, Building: snap})
	return snap
}

// Step forwards a to the environment.
func (s *Session) Step(a env.Action) (building.Snapshot, float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, reward, done, err := s.env.Step(a)
	snap := b.Snapshot()
	if err != nil {
		return snap, reward, done, err
	}
	s.emit(Frame{Source: SourceAgent, Action: a.String(), Reward: reward, Building: snap})
	return snap, reward, done, nil
}

// Apply runs a manual operation on one floor. It does not advance the step
// counter.
func (s *Session) Apply(floor int, op Op) (building.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.env.Building()
	f, err := b.Floor(floor)
	if err != nil {
		return b.Snapshot(), err
	}
	switch op {
	case OpToggleLight:
		f.SwitchLights()
	case OpRaiseTemp:
		f.IncreaseTemp()
	case OpLowerTemp:
		f.DecreaseTemp()
	case OpAddOccupant:
		f.AddOccupant()
	case OpRemoveOccupant:
		if _, err := f.RemoveOccupant(); err != nil {
			return b.Snapshot(), fmt.Errorf("floor %d: %w", floor, err)
		}
	default:
		return b.Snapshot(), fmt.Errorf("operation %s: %w", op, env.ErrUnknownAction)
	}
	snap := b.Snapshot()
	s.log.Info("manual_operation", slog.Int("floor", floor), slog.String("op", op.String()))
	s.emit(Frame{Source: SourceManual, Action: fmt.Sprintf("%s@%d", op, floor), Building: snap})
	return snap, nil
}

// SetOutsideTemperature changes the ambient temperature of the live
// building.
func (s *Session) SetOutsideTemperature(t int) building.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.env.Building()
	b.SetOutsideTemperature(t)
	snap := b.Snapshot()
	s.log.Info("outside_temperature_set", slog.Int("value", t))
	s.emit(Frame{Source: SourceAmbient, Building: snap})
	return snap
}

// Snapshot returns the current state without mutating anything.
func (s *Session) Snapshot() building.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.Building().Snapshot()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

func (s *Session) status() Status {
	return Status{
		Episode:  s.episode,
		Steps:    s.env.Steps(),
		MaxSteps: s.env.MaxSteps(),
		Outcome:  s.env.Outcome().String(),
	}
}

// emit fills in the bookkeeping fields and hands f to the hook. It runs
// with s.mu held so frames are delivered in mutation order.
func (s *Session) emit(f Frame) {
	st := s.status()
	f.Episode = st.Episode
	f.Step = st.Steps
	f.Outcome = st.Outcome
	f.Terminated = s.env.Terminated()
	f.At = s.now().UTC()
	s.hook(f)
}
