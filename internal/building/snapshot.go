// v0
// internal/building/snapshot.go
package building

// Snapshot is a self-contained copy of a building. It shares no memory with
// the building it was taken from and is safe to hand to other goroutines.
type Snapshot struct {
	OutsideTemperature  int          `json:"outsideTemperature"`
	Floors              []FloorState `json:"floors"`
	TotalEnergyUsed     float64      `json:"totalEnergyUsed"`
	AverageComfort      float64      `json:"averageComfort"`
	ComfortDefined      bool         `json:"comfortDefined"`
	OccupiedFloors      int          `json:"occupiedFloors"`
	ExpectedEnergyUsage float64      `json:"expectedEnergyUsage"`
}

// Comfort returns the average comfort and whether it is defined.
func (s Snapshot) Comfort() (float64, bool) {
	return s.AverageComfort, s.ComfortDefined
}

// Snapshot captures the current state.
func (b *Building) Snapshot() Snapshot {
	s := Snapshot{
		OutsideTemperature:  b.outsideTemperature,
		Floors:              make([]FloorState, len(b.floors)),
		TotalEnergyUsed:     TenthsToKWh(b.totalEnergyTenths),
		OccupiedFloors:      b.occupiedFloors,
		ExpectedEnergyUsage: TenthsToKWh(b.expectedEnergyTenths),
	}
	for i, f := range b.floors {
		s.Floors[i] = f.State()
	}
	if avg, err := b.AverageComfort(); err == nil {
		s.AverageComfort = avg
		s.ComfortDefined = true
	}
	return s
}

// Clone deep copies the building. Floors of the clone are owned by the
// clone, so mutating one never touches the other.
func (b *Building) Clone() *Building {
	c := &Building{
		outsideTemperature:   b.outsideTemperature,
		totalEnergyTenths:    b.totalEnergyTenths,
		comfortSum:           b.comfortSum,
		occupiedFloors:       b.occupiedFloors,
		expectedEnergyTenths: b.expectedEnergyTenths,
		floors:               make([]*Floor, len(b.floors)),
	}
	for i, f := range b.floors {
		cf := *f
		cf.owner = c
		c.floors[i] = &cf
	}
	return c
}

// Restore overwrites b in place with the state of src. Existing *Floor
// handles held by callers stay valid when the floor counts match.
func (b *Building) Restore(src *Building) {
	b.outsideTemperature = src.outsideTemperature
	b.totalEnergyTenths = src.totalEnergyTenths
	b.comfortSum = src.comfortSum
	b.occupiedFloors = src.occupiedFloors
	b.expectedEnergyTenths = src.expectedEnergyTenths

	if len(b.floors) != len(src.floors) {
		b.floors = make([]*Floor, len(src.floors))
	}
	for i, sf := range src.floors {
		f := b.floors[i]
		if f == nil {
			f = &Floor{}
			b.floors[i] = f
		}
		*f = *sf
		f.owner = b
	}
}
