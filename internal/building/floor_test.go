// v0
// internal/building/floor_test.go
package building

import (
	"math"
	"testing"
)

func TestCalculateComfort(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		occ   int
		light bool
		temp  int
		want  int
	}{
		{name: "empty", occ: 0, light: true, temp: 21, want: ComfortUninhabited},
		{name: "band lit", occ: 2, light: true, temp: 21, want: 2},
		{name: "band upper dark", occ: 1, light: false, temp: 22, want: 1},
		{name: "one below band lit", occ: 1, light: true, temp: 20, want: 1},
		{name: "one above band dark", occ: 1, light: false, temp: 23, want: 0},
		{name: "mild lit", occ: 1, light: true, temp: 19, want: 0},
		{name: "mild dark", occ: 1, light: false, temp: 24, want: 0},
		{name: "mild edge lit", occ: 1, light: true, temp: 25, want: 0},
		{name: "severe edge lit", occ: 1, light: true, temp: 17, want: 0},
		{name: "severe lit", occ: 3, light: true, temp: 26, want: 0},
		{name: "severe dark", occ: 3, light: false, temp: 10, want: 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewFloor(tc.occ, tc.light, tc.temp)
			if err != nil {
				t.Fatalf("NewFloor error: %v", err)
			}
			if got := f.CalculateComfort(); got != tc.want {
				t.Fatalf("expected comfort %d, got %d", tc.want, got)
			}
			if f.Comfort() != tc.want {
				t.Fatalf("stored comfort %d does not match %d", f.Comfort(), tc.want)
			}
		})
	}
}

func TestCalculateEnergyUsageIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New(10)
	f, err := NewFloor(1, true, 13)
	if err != nil {
		t.Fatalf("NewFloor error: %v", err)
	}
	if err := b.AddFloor(f); err != nil {
		t.Fatalf("AddFloor error: %v", err)
	}
	first := f.CalculateEnergyUsage()
	second := f.CalculateEnergyUsage()
	if math.Abs(first-0.8) > 1e-9 || first != second {
		t.Fatalf("expected stable 0.8, got %v then %v", first, second)
	}
}

func TestFloorMutatorsReportChange(t *testing.T) {
	t.Parallel()
	f, err := NewFloor(1, false, 20)
	if err != nil {
		t.Fatalf("NewFloor error: %v", err)
	}
	change := f.IncreaseTemp()
	if change.Before.Temperature != 20 || change.After.Temperature != 21 {
		t.Fatalf("unexpected temperature change %+v", change)
	}
	if change.Before.Comfort != 0 || change.After.Comfort != 1 {
		t.Fatalf("unexpected comfort change %+v", change)
	}
	change = f.DecreaseTemp()
	if change.After.Temperature != 20 {
		t.Fatalf("expected 20, got %d", change.After.Temperature)
	}
	change = f.AddOccupant()
	if change.After.Occupants != 2 || !change.Before.Occupied() {
		t.Fatalf("unexpected occupancy change %+v", change)
	}
}

func TestNewFloorRejectsNegativeOccupants(t *testing.T) {
	t.Parallel()
	if _, err := NewFloor(-1, false, 20); err != ErrNegativeOccupants {
		t.Fatalf("expected ErrNegativeOccupants, got %v", err)
	}
}
