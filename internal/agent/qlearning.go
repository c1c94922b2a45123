// v0
// internal/agent/qlearning.go
package agent

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/env"
)

// QLearner is tabular, epsilon-greedy Q-learning over a per-floor state.
// Each step it picks a floor uniformly at random and then an action for it.
type QLearner struct {
	params Params
	rng    *rand.Rand
	floors int
	q      *mat.Dense
}

// NewQLearner returns a learner with a zeroed Q table.
func NewQLearner(floors int, p Params, rng *rand.Rand) (*QLearner, error) {
	if err := validate(floors, rng); err != nil {
		return nil, err
	}
	return &QLearner{
		params: p,
		rng:    rng,
		floors: floors,
		q:      mat.NewDense(tableRows(floors), env.NumKinds, nil),
	}, nil
}

func (l *QLearner) Name() string { return AlgorithmQLearning }
func (l *QLearner) Begin(int)    {}
func (l *QLearner) End()         {}

// Act picks a random floor, then explores with probability epsilon and
// exploits the best known action otherwise.
func (l *QLearner) Act(s building.Snapshot) env.Action {
	floor := l.rng.IntN(l.floors)
	if l.rng.Float64() < l.params.Epsilon {
		return env.Action{Floor: floor, Kind: env.ActionKind(l.rng.IntN(env.NumKinds))}
	}
	row := l.q.RawRowView(stateRow(s, floor))
	return env.Action{Floor: floor, Kind: env.ActionKind(floats.MaxIdx(row))}
}

// Learn applies Q(s,a) += alpha * (r + gamma * max Q(s') - Q(s,a)).
func (l *QLearner) Learn(tr Transition) {
	row := stateRow(tr.State, tr.Action.Floor)
	next := l.q.RawRowView(stateRow(tr.Next, tr.Action.Floor))
	target := tr.Reward + l.params.Gamma*floats.Max(next)
	col := int(tr.Action.Kind)
	cur := l.q.At(row, col)
	l.q.Set(row, col, cur+l.params.StepSize*(target-cur))
}

// Table exposes the Q values, one row per (floor, light, temperature bucket)
// and one column per ActionKind.
func (l *QLearner) Table() mat.Matrix { return l.q }
