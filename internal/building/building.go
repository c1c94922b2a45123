// v1
// internal/building/building.go
package building

import "fmt"

const comfortReferenceC = 21

// Building owns an ordered set of floors and keeps two aggregates in step
// with them: total energy used and the comfort average over occupied
// floors. Both are held as integers (energy in tenths of a kWh, comfort as
// a sum plus the number of occupied floors), so the incremental path never
// drifts from a rescan.
type Building struct {
	floors             []*Floor
	outsideTemperature int

	totalEnergyTenths int
	comfortSum        int
	occupiedFloors    int

	expectedEnergyTenths int
}

// New returns a building with no floors.
func New(outsideTemperature int) *Building {
	return &Building{outsideTemperature: outsideTemperature}
}

// AddFloor appends f, aligns its outside temperature with the building and
// recomputes every aggregate from scratch.
func (b *Building) AddFloor(f *Floor) error {
	if f == nil {
		return ErrNilFloor
	}
	if f.owner != nil {
		return ErrFloorAttached
	}
	f.owner = b
	f.outsideTemperature = b.outsideTemperature
	f.recompute()
	b.floors = append(b.floors, f)

	d := b.outsideTemperature - comfortReferenceC
	if d < 0 {
		d = -d
	}
	n := len(b.floors)
	b.expectedEnergyTenths = n*lightEnergyTenths + n*d*energyPerDegreeTenths
	b.UpdateAverageComfort(nil)
	b.UpdateTotalEnergyUsed(nil)
	return nil
}

// Floor returns the floor at index i.
func (b *Building) Floor(i int) (*Floor, error) {
	if i < 0 || i >= len(b.floors) {
		return nil, fmt.Errorf("floor %d of %d: %w", i, len(b.floors), ErrFloorOutOfRange)
	}
	return b.floors[i], nil
}

// Floors returns the floors in insertion order. The slice is a copy; the
// floors are not.
func (b *Building) Floors() []*Floor {
	return append([]*Floor(nil), b.floors...)
}

func (b *Building) NumFloors() int               { return len(b.floors) }
func (b *Building) OutsideTemperature() int      { return b.outsideTemperature }
func (b *Building) TotalEnergyUsed() float64     { return TenthsToKWh(b.totalEnergyTenths) }
func (b *Building) OccupiedFloors() int          { return b.occupiedFloors }
func (b *Building) ExpectedEnergyUsage() float64 { return TenthsToKWh(b.expectedEnergyTenths) }

// TotalEnergyTenths and ExpectedEnergyTenths expose the exact integer
// aggregates behind TotalEnergyUsed and ExpectedEnergyUsage.
func (b *Building) TotalEnergyTenths() int    { return b.totalEnergyTenths }
func (b *Building) ExpectedEnergyTenths() int { return b.expectedEnergyTenths }

// AverageComfort returns the mean comfort of occupied floors, or
// ErrNoOccupiedFloors when none is occupied.
func (b *Building) AverageComfort() (float64, error) {
	if b.occupiedFloors == 0 {
		return 0, ErrNoOccupiedFloors
	}
	return float64(b.comfortSum) / float64(b.occupiedFloors), nil
}

// SetOutsideTemperature changes the ambient temperature of the building and
// of every floor, then recomputes total energy with a full scan. The
// expected energy target only changes when floors are added.
func (b *Building) SetOutsideTemperature(t int) {
	b.outsideTemperature = t
	for _, f := range b.floors {
		f.outsideTemperature = t
		f.recompute()
	}
	b.UpdateTotalEnergyUsed(nil)
	b.UpdateAverageComfort(nil)
}

// UpdateTotalEnergyUsed rescans every floor when change is nil, otherwise
// it swaps the floor's previous energy for the new one.
func (b *Building) UpdateTotalEnergyUsed(change *FloorChange) {
	if change == nil {
		total := 0
		for _, f := range b.floors {
			total += f.energyTenths
		}
		b.totalEnergyTenths = total
		return
	}
	b.totalEnergyTenths += change.After.energyTenths - change.Before.energyTenths
}

// UpdateAverageComfort rescans every occupied floor when change is nil.
// Otherwise it replaces, removes or adds the floor's contribution depending
// on whether the floor stayed occupied, emptied, or gained its first
// occupant.
func (b *Building) UpdateAverageComfort(change *FloorChange) {
	if change == nil {
		sum, occupied := 0, 0
		for _, f := range b.floors {
			if f.occupants > 0 {
				sum += f.comfort
				occupied++
			}
		}
		b.comfortSum, b.occupiedFloors = sum, occupied
		return
	}
	was, is := change.Before.Occupied(), change.After.Occupied()
	switch {
	case was && is:
		b.comfortSum += change.After.Comfort - change.Before.Comfort
	case was && !is:
		b.comfortSum -= change.Before.Comfort
		b.occupiedFloors--
	case !was && is:
		b.comfortSum += change.After.Comfort
		b.occupiedFloors++
	}
}

func (b *Building) applyChange(change FloorChange) {
	b.UpdateAverageComfort(&change)
	b.UpdateTotalEnergyUsed(&change)
}
