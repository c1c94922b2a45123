// v0
// internal/agent/agent.go
package agent

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/env"
)

// Env is what a learner trains against. Both the bare environment (through
// a session) and remote drivers satisfy it.
type Env interface {
	Reset() building.Snapshot
	Step(a env.Action) (building.Snapshot, float64, bool, error)
}

// Transition is one observed step.
type Transition struct {
	State  building.Snapshot
	Action env.Action
	Reward float64
	Next   building.Snapshot
	Done   bool
}

// Learner chooses actions and learns from their outcome.
type Learner interface {
	Name() string
	Begin(episode int)
	Act(s building.Snapshot) env.Action
	Learn(tr Transition)
	End()
}

// Params are the hyper-parameters shared by the learners. Epsilon only
// applies to QLearner and Temperature only to ActorCritic.
type Params struct {
	Gamma       float64
	StepSize    float64
	Epsilon     float64
	Temperature float64
}

// DefaultParams mirrors the values the learners were tuned with.
func DefaultParams() Params {
	return Params{Gamma: 0.99, StepSize: 0.01, Epsilon: 0.1, Temperature: defaultTemperature}
}

// Algorithm names accepted by NewLearner.
const (
	AlgorithmQLearning   = "qlearning"
	AlgorithmActorCritic = "actorcritic"
	AlgorithmReinforce   = "reinforce"
	AlgorithmPPO         = "ppo"
)

// NewLearner builds the learner named by algorithm for a building with the
// given number of floors.
func NewLearner(algorithm string, floors int, p Params, rng *rand.Rand) (Learner, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case AlgorithmQLearning, "q", "algo1":
		return NewQLearner(floors, p, rng)
	case AlgorithmActorCritic, "sac", "algo2":
		return NewActorCritic(floors, p, rng)
	case AlgorithmReinforce, "pg", "algo3":
		return NewReinforce(floors, p, rng)
	case AlgorithmPPO, "algo4":
		return NewPPO(floors, p, rng)
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
	}
}

// NewRand returns the deterministic generator used by learners.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

const (
	lightStates = 2
	tempBuckets = 3
)

// stateRow indexes the (floor, light, temperature bucket) row of a policy
// table. Buckets split at 20 and 23 °C.
func stateRow(s building.Snapshot, floor int) int {
	f := s.Floors[floor]
	light := 0
	if f.LightOn {
		light = 1
	}
	bucket := 2
	switch {
	case f.Temperature < 20:
		bucket = 0
	case f.Temperature < 23:
		bucket = 1
	}
	return (floor*lightStates+light)*tempBuckets + bucket
}

func tableRows(floors int) int {
	return floors * lightStates * tempBuckets
}

func validate(floors int, rng *rand.Rand) error {
	if floors <= 0 {
		return fmt.Errorf("floors must be positive, got %d", floors)
	}
	if rng == nil {
		return fmt.Errorf("random source must not be nil")
	}
	return nil
}
