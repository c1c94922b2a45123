// v0
// internal/env/reward_test.go
package env

import "testing"

func TestComputeReward(t *testing.T) {
	t.Parallel()
	// energy values are tenths of a kWh
	cases := []struct {
		name string
		prev aggregates
		cur  aggregates
		want float64
	}{
		{
			name: "no change comfortable",
			prev: aggregates{energy: 20, expected: 30, comfort: 1, comfortDefined: true},
			cur:  aggregates{energy: 20, expected: 30, comfort: 1, comfortDefined: true},
			want: 0,
		},
		{
			name: "both improve",
			prev: aggregates{energy: 20, expected: 30, comfort: 1, comfortDefined: true},
			cur:  aggregates{energy: 15, expected: 30, comfort: 1.5, comfortDefined: true},
			want: 0.2,
		},
		{
			name: "improving but still uncomfortable",
			prev: aggregates{energy: 20, expected: 30, comfort: 0.5, comfortDefined: true},
			cur:  aggregates{energy: 15, expected: 30, comfort: 0.8, comfortDefined: true},
			want: -0.8,
		},
		{
			name: "medium decline with overrun",
			prev: aggregates{energy: 50, expected: 30, comfort: 1.8, comfortDefined: true},
			cur:  aggregates{energy: 60, expected: 30, comfort: 1.2, comfortDefined: true},
			want: -1.1,
		},
		{
			name: "minor energy increase",
			prev: aggregates{energy: 20, expected: 30, comfort: 2, comfortDefined: true},
			cur:  aggregates{energy: 21, expected: 30, comfort: 2, comfortDefined: true},
			want: -0.1,
		},
		{
			name: "increase landing exactly on overrun margin",
			prev: aggregates{energy: 49, expected: 30, comfort: 2, comfortDefined: true},
			cur:  aggregates{energy: 50, expected: 30, comfort: 2, comfortDefined: true},
			want: -0.1,
		},
		{
			name: "comfort becomes defined",
			prev: aggregates{energy: 20, expected: 30},
			cur:  aggregates{energy: 20, expected: 30, comfort: 2, comfortDefined: true},
			want: 0,
		},
		{
			name: "comfort becomes undefined",
			prev: aggregates{energy: 20, expected: 30, comfort: 0, comfortDefined: true},
			cur:  aggregates{energy: 19, expected: 30},
			want: 0.1,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := computeReward(tc.prev, tc.cur)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("expected reward %v, got %v", tc.want, got)
			}
		})
	}
}
