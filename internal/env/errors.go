// v0
// internal/env/errors.go
package env

import (
	"errors"

	"nrgchamp/buildingrl/internal/building"
)

var (
	// ErrFloorOutOfRange aliases the building sentinel so callers only need
	// to import one package.
	ErrFloorOutOfRange   = building.ErrFloorOutOfRange
	ErrUnknownAction     = errors.New("unknown action")
	ErrEpisodeTerminated = errors.New("episode terminated, reset required")
	ErrEmptyBuilding     = errors.New("building has no floors")
)
