// v1
// internal/building/floor.go
package building

const (
	// ComfortUninhabited marks a floor without occupants. Such floors are
	// excluded from the building comfort average.
	ComfortUninhabited = -1

	comfortBandLow  = 21
	comfortBandHigh = 22

	mildDeviationC   = 2
	severeDeviationC = 4

	// Energy is accounted in tenths of a kWh.
	lightEnergyTenths     = 5
	energyPerDegreeTenths = 1
)

// TenthsToKWh converts an energy amount held in tenths of a kWh.
func TenthsToKWh(tenths int) float64 { return float64(tenths) / 10 }

// FloorState is an immutable copy of a floor's attributes and derived values.
type FloorState struct {
	Occupants          int     `json:"occupants"`
	LightOn            bool    `json:"lightOn"`
	Temperature        int     `json:"temperature"`
	OutsideTemperature int     `json:"outsideTemperature"`
	EnergyUsed         float64 `json:"energyUsed"`
	Comfort            int     `json:"comfort"`

	energyTenths int
}

// Occupied reports whether the floor takes part in comfort averaging.
func (s FloorState) Occupied() bool { return s.Occupants > 0 }

// FloorChange carries the before/after pair produced by a single floor
// mutation so the owning building can adjust its aggregates in O(1).
type FloorChange struct {
	Before FloorState
	After  FloorState
}

// Floor is the atomic controllable unit of a building. Its derived energy
// and comfort values are recomputed by every mutator before it returns.
type Floor struct {
	occupants          int
	lightOn            bool
	temperature        int
	outsideTemperature int

	energyTenths int
	comfort      int

	owner *Building
}

// NewFloor builds a detached floor. The outside temperature is taken from
// the building once the floor is attached with AddFloor.
func NewFloor(occupants int, lightOn bool, temperature int) (*Floor, error) {
	if occupants < 0 {
		return nil, ErrNegativeOccupants
	}
	f := &Floor{occupants: occupants, lightOn: lightOn, temperature: temperature}
	f.recompute()
	return f, nil
}

func (f *Floor) Occupants() int          { return f.occupants }
func (f *Floor) LightOn() bool           { return f.lightOn }
func (f *Floor) Temperature() int        { return f.temperature }
func (f *Floor) OutsideTemperature() int { return f.outsideTemperature }
func (f *Floor) EnergyUsed() float64     { return TenthsToKWh(f.energyTenths) }
func (f *Floor) Comfort() int            { return f.comfort }

// State returns a value copy of the floor.
func (f *Floor) State() FloorState {
	return FloorState{
		Occupants:          f.occupants,
		LightOn:            f.lightOn,
		Temperature:        f.temperature,
		OutsideTemperature: f.outsideTemperature,
		EnergyUsed:         TenthsToKWh(f.energyTenths),
		Comfort:            f.comfort,
		energyTenths:       f.energyTenths,
	}
}

// CalculateComfort scores the floor from its current state:
//
//	no occupants                       -> -1
//	otherwise start at 0, +1 light on, +1 temperature in {21, 22}
//	2 or 3 °C outside the band         -> minus 1, floored at 0
//	>= 4 °C outside the band           -> minus 2 when the score is 2, else 0
func (f *Floor) CalculateComfort() int {
	if f.occupants == 0 {
		return ComfortUninhabited
	}
	comfort := 0
	if f.lightOn {
		comfort++
	}
	switch d := bandDistance(f.temperature); {
	case d == 0:
		comfort++
	case d >= mildDeviationC && d < severeDeviationC:
		if comfort >= 1 {
			comfort--
		}
	case d >= severeDeviationC:
		if comfort == 2 {
			comfort -= 2
		} else {
			comfort = 0
		}
	}
	return comfort
}

// CalculateEnergyUsage returns 0.5 for lights plus 0.1 per degree of
// difference from the outside temperature.
func (f *Floor) CalculateEnergyUsage() float64 {
	return TenthsToKWh(f.calculateEnergyTenths())
}

func (f *Floor) calculateEnergyTenths() int {
	energy := 0
	if f.lightOn {
		energy += lightEnergyTenths
	}
	d := f.outsideTemperature - f.temperature
	if d < 0 {
		d = -d
	}
	return energy + energyPerDegreeTenths*d
}

// SwitchLights flips the light state.
func (f *Floor) SwitchLights() FloorChange {
	return f.mutate(func() { f.lightOn = !f.lightOn })
}

// IncreaseTemp raises the floor temperature by 1 °C.
func (f *Floor) IncreaseTemp() FloorChange {
	return f.mutate(func() { f.temperature++ })
}

// DecreaseTemp lowers the floor temperature by 1 °C.
func (f *Floor) DecreaseTemp() FloorChange {
	return f.mutate(func() { f.temperature-- })
}

// AddOccupant adds one occupant. The first occupant makes the floor count
// towards the building comfort average.
func (f *Floor) AddOccupant() FloorChange {
	return f.mutate(func() { f.occupants++ })
}

// RemoveOccupant removes one occupant. Removing the last one takes the
// floor out of the comfort average.
func (f *Floor) RemoveOccupant() (FloorChange, error) {
	if f.occupants == 0 {
		return FloorChange{}, ErrNoOccupants
	}
	return f.mutate(func() { f.occupants-- }), nil
}

func (f *Floor) mutate(apply func()) FloorChange {
	before := f.State()
	apply()
	f.recompute()
	change := FloorChange{Before: before, After: f.State()}
	if f.owner != nil {
		f.owner.applyChange(change)
	}
	return change
}

func (f *Floor) recompute() {
	f.comfort = f.CalculateComfort()
	f.energyTenths = f.calculateEnergyTenths()
}

func bandDistance(t int) int {
	switch {
	case t < comfortBandLow:
		return comfortBandLow - t
	case t > comfortBandHigh:
		return t - comfortBandHigh
	default:
		return 0
	}
}
