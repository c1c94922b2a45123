// v0
// internal/agent/actorcritic.go
package agent

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/env"
)

const (
	defaultTemperature = 0.1
	logProbEpsilon     = 1e-10
)

// ActorCritic is a discrete soft actor-critic over the per-floor state. It
// keeps twin Q tables and acts from a softmax over their element-wise
// minimum, scaled by the entropy temperature. Columns cover the three
// mutating kinds; NoOp is never chosen.
type ActorCritic struct {
	params Params
	rng    *rand.Rand
	floors int
	q1, q2 *mat.Dense
}

// NewActorCritic returns a learner with both Q tables zeroed.
func NewActorCritic(floors int, p Params, rng *rand.Rand) (*ActorCritic, error) {
	if err := validate(floors, rng); err != nil {
		return nil, err
	}
	if p.Temperature <= 0 {
		p.Temperature = defaultTemperature
	}
	rows := tableRows(floors)
	return &ActorCritic{
		params: p,
		rng:    rng,
		floors: floors,
		q1:     mat.NewDense(rows, env.ActionsPerFloor, nil),
		q2:     mat.NewDense(rows, env.ActionsPerFloor, nil),
	}, nil
}

func (l *ActorCritic) Name() string { return AlgorithmActorCritic }
func (l *ActorCritic) Begin(int)    {}
func (l *ActorCritic) End()         {}

// Act samples an action for a random floor from the soft policy.
func (l *ActorCritic) Act(s building.Snapshot) env.Action {
	floor := l.rng.IntN(l.floors)
	pi := l.policy(stateRow(s, floor))
	return env.Action{Floor: floor, Kind: env.ActionKind(sample(l.rng, pi) + 1)}
}

// Learn moves both tables towards r + gamma * V(s'), where
// V(s') = sum pi(a|s') * (minQ(s',a) - temperature * log pi(a|s')) and the
// bootstrap is dropped on terminal transitions.
func (l *ActorCritic) Learn(tr Transition) {
	if tr.Action.Kind == env.NoOp || !tr.Action.Kind.Valid() {
		return
	}
	target := tr.Reward
	if !tr.Done {
		target += l.params.Gamma * l.softValue(stateRow(tr.Next, tr.Action.Floor))
	}
	row, col := stateRow(tr.State, tr.Action.Floor), int(tr.Action.Kind)-1
	for _, q := range []*mat.Dense{l.q1, l.q2} {
		cur := q.At(row, col)
		q.Set(row, col, cur+l.params.StepSize*(target-cur))
	}
}

func (l *ActorCritic) minQ(row int) []float64 {
	out := make([]float64, env.ActionsPerFloor)
	a, b := l.q1.RawRowView(row), l.q2.RawRowView(row)
	for i := range out {
		out[i] = math.Min(a[i], b[i])
	}
	return out
}

func (l *ActorCritic) policy(row int) []float64 {
	q := l.minQ(row)
	floats.Scale(1/l.params.Temperature, q)
	return softmax(q)
}

func (l *ActorCritic) softValue(row int) float64 {
	q := l.minQ(row)
	pi := l.policy(row)
	v := 0.0
	for i, p := range pi {
		v += p * (q[i] - l.params.Temperature*math.Log(p+logProbEpsilon))
	}
	return v
}

// Tables exposes the twin Q estimates, one column per mutating kind.
func (l *ActorCritic) Tables() (mat.Matrix, mat.Matrix) { return l.q1, l.q2 }

// sample draws an index from the distribution pi.
func sample(rng *rand.Rand, pi []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, p := range pi {
		acc += p
		if u < acc {
			return i
		}
	}
	return len(pi) - 1
}
