// v0
// internal/building/errors.go
package building

import "errors"

var (
	// ErrNoOccupiedFloors is returned when the comfort average is requested
	// while no floor has occupants. It is an expected state, not a fault.
	ErrNoOccupiedFloors  = errors.New("no occupied floors")
	ErrFloorOutOfRange   = errors.New("floor index out of range")
	ErrNoOccupants       = errors.New("floor has no occupants")
	ErrNegativeOccupants = errors.New("occupant count must not be negative")
	ErrFloorAttached     = errors.New("floor already attached to a building")
	ErrNilFloor          = errors.New("floor must not be nil")
)
