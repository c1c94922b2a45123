// v0
// internal/env/reward.go
package env

import "nrgchamp/buildingrl/internal/building"

const (
	goalComfort = 1.5

	improveBonus       = 0.1
	mediumDeclineCost  = 0.1
	uncomfortableCost  = 1.0
	energyIncreaseCost = 0.1
	energyOverrunCost  = 1.0

	// energyOverrunMarginTenths is how far above the expected energy, in
	// tenths of a kWh, a building may go before an energy increase is
	// punished in full.
	energyOverrunMarginTenths = 20
)

// computeReward sums every shaping term that applies to the transition
// prev -> cur. Comfort terms are skipped while the average is undefined.
func computeReward(prev, cur aggregates) float64 {
	reward := 0.0
	bothDefined := prev.comfortDefined && cur.comfortDefined

	if bothDefined && cur.comfort > prev.comfort {
		reward += improveBonus
	}
	if cur.energy < prev.energy {
		reward += improveBonus
	}
	if bothDefined && cur.comfort > 1 && cur.comfort < 2 && cur.comfort < prev.comfort {
		reward -= mediumDeclineCost
	}
	if cur.comfortDefined && cur.comfort < 1 {
		reward -= uncomfortableCost
	}
	if cur.energy > prev.energy {
		if cur.energy > cur.expected+energyOverrunMarginTenths {
			reward -= energyOverrunCost
		} else {
			reward -= energyIncreaseCost
		}
	}
	return reward
}

// GoalReached reports whether s satisfies the goal condition: energy below
// the expected target while the comfort average is at least 1.5.
func GoalReached(s building.Snapshot) bool {
	return s.ComfortDefined && s.TotalEnergyUsed < s.ExpectedEnergyUsage && s.AverageComfort >= goalComfort
}
