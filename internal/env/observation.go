// v0
// internal/env/observation.go
package env

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"nrgchamp/buildingrl/internal/building"
)

// ObservationSize is the length of the vector returned by Observation for a
// building with the given number of floors.
func ObservationSize(floors int) int {
	return 1 + 3*floors + 2
}

// Observation flattens a snapshot into
// [outside, (light, temp, occupants) per floor, total energy, avg comfort]
// and z-score normalises it. An undefined comfort average is encoded as -1,
// the same value an empty floor reports.
func Observation(s building.Snapshot) *mat.VecDense {
	raw := make([]float64, 0, ObservationSize(len(s.Floors)))
	raw = append(raw, float64(s.OutsideTemperature))
	for _, f := range s.Floors {
		light := 0.0
		if f.LightOn {
			light = 1
		}
		raw = append(raw, light, float64(f.Temperature), float64(f.Occupants))
	}
	comfort := float64(building.ComfortUninhabited)
	if avg, ok := s.Comfort(); ok {
		comfort = avg
	}
	raw = append(raw, s.TotalEnergyUsed, comfort)

	mean, std := stat.PopMeanStdDev(raw, nil)
	floats.AddConst(-mean, raw)
	if std > 0 {
		floats.Scale(1/std, raw)
	}
	return mat.NewVecDense(len(raw), raw)
}
