// v0
// internal/building/building_test.go
package building

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeFloors returns the reference building at 15 °C:
// floor 0 is occupied and lit at 22 °C, floor 1 is empty and dark at 20 °C,
// floor 2 has five occupants, lit, at 25 °C.
func threeFloors(t *testing.T) *Building {
	t.Helper()
	b := New(15)
	for _, spec := range []struct {
		occ   int
		light bool
		temp  int
	}{
		{1, true, 22},
		{0, false, 20},
		{5, true, 25},
	} {
		f, err := NewFloor(spec.occ, spec.light, spec.temp)
		require.NoError(t, err)
		require.NoError(t, b.AddFloor(f))
	}
	return b
}

// rescan recomputes both aggregates from scratch on a clone so the
// incremental values of b are left untouched.
func rescan(b *Building) (float64, float64, error) {
	c := b.Clone()
	c.UpdateTotalEnergyUsed(nil)
	c.UpdateAverageComfort(nil)
	avg, err := c.AverageComfort()
	return c.TotalEnergyUsed(), avg, err
}

// floorSum adds the per-floor energy in the same order a rescan does.
func floorSum(b *Building) float64 {
	total := 0
	for _, f := range b.Floors() {
		total += f.energyTenths
	}
	return TenthsToKWh(total)
}

func TestBuildingReferenceScenario(t *testing.T) {
	b := threeFloors(t)

	want := []struct {
		comfort int
		energy  float64
	}{
		{2, 1.2},
		{ComfortUninhabited, 0.5},
		{0, 1.5},
	}
	for i, w := range want {
		f, err := b.Floor(i)
		require.NoError(t, err)
		assert.Equal(t, w.comfort, f.Comfort(), "floor %d comfort", i)
		assert.InDelta(t, w.energy, f.EnergyUsed(), 1e-9, "floor %d energy", i)
	}

	assert.InDelta(t, 3.2, b.TotalEnergyUsed(), 1e-9)
	avg, err := b.AverageComfort()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, avg, 1e-9)
	assert.Equal(t, 2, b.OccupiedFloors())
	// 3*0.5 + 3*|15-21|*0.1
	assert.InDelta(t, 3.3, b.ExpectedEnergyUsage(), 1e-9)
}

func TestBuildingToggleEmptyFloorChangesEnergyOnly(t *testing.T) {
	b := threeFloors(t)
	f, _ := b.Floor(1)

	change := f.SwitchLights()

	assert.False(t, change.Before.LightOn)
	assert.True(t, change.After.LightOn)
	assert.InDelta(t, 3.7, b.TotalEnergyUsed(), 1e-9)
	avg, err := b.AverageComfort()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, avg, 1e-9)
}

func TestBuildingEmptyingFloorLeavesAverage(t *testing.T) {
	b := threeFloors(t)
	f, _ := b.Floor(2)

	for f.Occupants() > 0 {
		_, err := f.RemoveOccupant()
		require.NoError(t, err)
	}

	assert.Equal(t, ComfortUninhabited, f.Comfort())
	assert.Equal(t, 1, b.OccupiedFloors())
	avg, err := b.AverageComfort()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, avg, 1e-9)

	energy, full, err := rescan(b)
	require.NoError(t, err)
	assert.InDelta(t, energy, b.TotalEnergyUsed(), 1e-9)
	assert.InDelta(t, full, avg, 1e-9)

	_, err = f.RemoveOccupant()
	assert.ErrorIs(t, err, ErrNoOccupants)
}

func TestBuildingFirstOccupantJoinsAverage(t *testing.T) {
	b := threeFloors(t)
	f, _ := b.Floor(1)

	f.AddOccupant()

	assert.Equal(t, 3, b.OccupiedFloors())
	// dark at 20 °C, one degree below the band
	assert.Equal(t, 0, f.Comfort())
	avg, err := b.AverageComfort()
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, avg, 1e-9)
}

func TestBuildingNoOccupiedFloors(t *testing.T) {
	b := New(20)
	f, err := NewFloor(0, false, 20)
	require.NoError(t, err)
	require.NoError(t, b.AddFloor(f))

	_, err = b.AverageComfort()
	assert.True(t, errors.Is(err, ErrNoOccupiedFloors))
	assert.InDelta(t, 0.0, b.TotalEnergyUsed(), 1e-9)
}

func TestBuildingIncrementalMatchesRescan(t *testing.T) {
	b := threeFloors(t)
	ops := []func(f *Floor){
		func(f *Floor) { f.SwitchLights() },
		func(f *Floor) { f.IncreaseTemp() },
		func(f *Floor) { f.DecreaseTemp() },
		func(f *Floor) { f.AddOccupant() },
		func(f *Floor) { _, _ = f.RemoveOccupant() },
	}
	for step := 0; step < 400; step++ {
		f, err := b.Floor((step * 7) % b.NumFloors())
		require.NoError(t, err)
		ops[(step*3+step/5)%len(ops)](f)

		energy, full, fullErr := rescan(b)
		assert.Equal(t, energy, b.TotalEnergyUsed(), "step %d", step)
		avg, err := b.AverageComfort()
		if fullErr != nil {
			assert.ErrorIs(t, err, ErrNoOccupiedFloors, "step %d", step)
			continue
		}
		require.NoError(t, err, "step %d", step)
		assert.InDelta(t, full, avg, 1e-9, "step %d", step)
	}
}

func TestBuildingEnergyTotalIsExactUnderLongWalks(t *testing.T) {
	b := threeFloors(t)
	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 2000; step++ {
		f, err := b.Floor(rng.Intn(b.NumFloors()))
		require.NoError(t, err)
		switch rng.Intn(3) {
		case 0:
			f.SwitchLights()
		case 1:
			f.IncreaseTemp()
		default:
			f.DecreaseTemp()
		}
		require.Equal(t, floorSum(b), b.TotalEnergyUsed(), "step %d", step)
	}

	// walk back to the reference state: the total must be bit-identical
	b.Restore(threeFloors(t))
	assert.Equal(t, 3.2, b.TotalEnergyUsed())
	assert.Equal(t, 3.3, b.ExpectedEnergyUsage())
	assert.Equal(t, 32, b.TotalEnergyTenths())
	assert.Equal(t, 33, b.ExpectedEnergyTenths())
}

func TestBuildingFloorOutOfRange(t *testing.T) {
	b := threeFloors(t)
	_, err := b.Floor(3)
	assert.ErrorIs(t, err, ErrFloorOutOfRange)
	_, err = b.Floor(-1)
	assert.ErrorIs(t, err, ErrFloorOutOfRange)
}

func TestBuildingAddFloorRejectsAttached(t *testing.T) {
	b := threeFloors(t)
	f, _ := b.Floor(0)
	assert.ErrorIs(t, New(10).AddFloor(f), ErrFloorAttached)
	assert.ErrorIs(t, b.AddFloor(nil), ErrNilFloor)
}

func TestBuildingSetOutsideTemperature(t *testing.T) {
	b := threeFloors(t)
	expected := b.ExpectedEnergyUsage()

	b.SetOutsideTemperature(22)

	for _, f := range b.Floors() {
		assert.Equal(t, 22, f.OutsideTemperature())
	}
	// 0.5 + 0 / 0 + 0.2 / 0.5 + 0.3
	assert.InDelta(t, 1.5, b.TotalEnergyUsed(), 1e-9)
	assert.InDelta(t, expected, b.ExpectedEnergyUsage(), 1e-9)
}

func TestBuildingCloneIsIndependent(t *testing.T) {
	b := threeFloors(t)
	c := b.Clone()

	f, _ := c.Floor(0)
	f.SwitchLights()
	f.IncreaseTemp()

	orig, _ := b.Floor(0)
	assert.True(t, orig.LightOn())
	assert.Equal(t, 22, orig.Temperature())
	assert.InDelta(t, 3.2, b.TotalEnergyUsed(), 1e-9)
	assert.NotEqual(t, b.TotalEnergyUsed(), c.TotalEnergyUsed())
}

func TestBuildingRestoreKeepsHandles(t *testing.T) {
	b := threeFloors(t)
	initial := b.Clone()
	handle, _ := b.Floor(0)

	handle.SwitchLights()
	handle.DecreaseTemp()
	b.Restore(initial)

	assert.True(t, handle.LightOn())
	assert.Equal(t, 22, handle.Temperature())
	assert.Equal(t, initial.Snapshot(), b.Snapshot())

	// the restored floor reports to b, not to the clone
	handle.SwitchLights()
	assert.InDelta(t, 2.7, b.TotalEnergyUsed(), 1e-9)
	assert.InDelta(t, 3.2, initial.TotalEnergyUsed(), 1e-9)
}

func TestSnapshotIsDetached(t *testing.T) {
	b := threeFloors(t)
	s := b.Snapshot()
	f, _ := b.Floor(0)
	f.SwitchLights()

	assert.True(t, s.Floors[0].LightOn)
	avg, ok := s.Comfort()
	assert.True(t, ok)
	assert.InDelta(t, 1.0, avg, 1e-9)
}
