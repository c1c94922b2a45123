// v0
// internal/env/action.go
package env

import (
	"fmt"
	"strings"
)

// ActionKind is the closed set of things an agent can do to one floor.
type ActionKind int

const (
	NoOp ActionKind = iota
	ToggleLight
	RaiseTemp
	LowerTemp
)

// ActionsPerFloor counts the mutating kinds. NoOp is not part of the flat
// action space.
const ActionsPerFloor = 3

// NumKinds is the number of ActionKind values including NoOp.
const NumKinds = 4

func (k ActionKind) String() string {
	switch k {
	case NoOp:
		return "noop"
	case ToggleLight:
		return "toggle_light"
	case RaiseTemp:
		return "raise_temp"
	case LowerTemp:
		return "lower_temp"
	default:
		return fmt.Sprintf("action_kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k ActionKind) Valid() bool {
	return k >= NoOp && k <= LowerTemp
}

// ParseActionKind accepts the names produced by String plus a few aliases
// used by the HTTP surface.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noop", "no_op", "none", "0":
		return NoOp, nil
	case "toggle_light", "lights", "light", "1":
		return ToggleLight, nil
	case "raise_temp", "up", "temperature/up", "2":
		return RaiseTemp, nil
	case "lower_temp", "down", "temperature/down", "3":
		return LowerTemp, nil
	default:
		return NoOp, fmt.Errorf("action %q: %w", s, ErrUnknownAction)
	}
}

// Action addresses one floor with one kind. Floor is ignored for NoOp.
type Action struct {
	Floor int        `json:"floor"`
	Kind  ActionKind `json:"kind"`
}

func (a Action) String() string {
	return fmt.Sprintf("%s@%d", a.Kind, a.Floor)
}

// DecodeFlat maps a flat index in [0, floors*ActionsPerFloor) to an action,
// floor-major: index = floor*ActionsPerFloor + (kind - 1).
func DecodeFlat(i, floors int) (Action, error) {
	if floors <= 0 || i < 0 || i >= floors*ActionsPerFloor {
		return Action{}, fmt.Errorf("flat action %d for %d floors: %w", i, floors, ErrUnknownAction)
	}
	return Action{Floor: i / ActionsPerFloor, Kind: ActionKind(i%ActionsPerFloor + 1)}, nil
}

// EncodeFlat is the inverse of DecodeFlat. NoOp has no flat index.
func EncodeFlat(a Action) (int, error) {
	if a.Kind == NoOp || !a.Kind.Valid() {
		return 0, fmt.Errorf("encode %s: %w", a, ErrUnknownAction)
	}
	return a.Floor*ActionsPerFloor + int(a.Kind) - 1, nil
}
