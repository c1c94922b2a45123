// v0
// internal/agent/reinforce.go
package agent

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/env"
)

const returnsEpsilon = 1e-10

type visit struct {
	row    int
	kind   int
	reward float64
}

// Reinforce is a Monte-Carlo policy gradient learner with a softmax policy
// over the same per-floor state as QLearner. Parameters are updated once
// per episode from normalised discounted returns.
type Reinforce struct {
	params  Params
	rng     *rand.Rand
	floors  int
	theta   *mat.Dense
	episode []visit
}

// NewReinforce initialises theta uniformly in [0, 1).
func NewReinforce(floors int, p Params, rng *rand.Rand) (*Reinforce, error) {
	if err := validate(floors, rng); err != nil {
		return nil, err
	}
	rows := tableRows(floors)
	data := make([]float64, rows*env.NumKinds)
	for i := range data {
		data[i] = rng.Float64()
	}
	return &Reinforce{
		params: p,
		rng:    rng,
		floors: floors,
		theta:  mat.NewDense(rows, env.NumKinds, data),
	}, nil
}

func (l *Reinforce) Name() string { return AlgorithmReinforce }

func (l *Reinforce) Begin(int) { l.episode = l.episode[:0] }

// Act samples an action for a random floor from the softmax policy.
func (l *Reinforce) Act(s building.Snapshot) env.Action {
	floor := l.rng.IntN(l.floors)
	pi := softmax(l.theta.RawRowView(stateRow(s, floor)))
	return env.Action{Floor: floor, Kind: env.ActionKind(sample(l.rng, pi))}
}

func (l *Reinforce) Learn(tr Transition) {
	l.episode = append(l.episode, visit{
		row:    stateRow(tr.State, tr.Action.Floor),
		kind:   int(tr.Action.Kind),
		reward: tr.Reward,
	})
}

// End computes the discounted returns of the finished episode, normalises
// them and moves theta along grad log pi scaled by each return.
func (l *Reinforce) End() {
	n := len(l.episode)
	if n == 0 {
		return
	}
	returns := make([]float64, n)
	g := 0.0
	for i := n - 1; i >= 0; i-- {
		g = l.episode[i].reward + l.params.Gamma*g
		returns[i] = g
	}
	mean, std := stat.PopMeanStdDev(returns, nil)
	floats.AddConst(-mean, returns)
	floats.Scale(1/(std+returnsEpsilon), returns)

	grad := make([]float64, env.NumKinds)
	for i, v := range l.episode {
		row := l.theta.RawRowView(v.row)
		pi := softmax(row)
		floats.ScaleTo(grad, -1, pi)
		grad[v.kind]++
		floats.AddScaled(row, l.params.StepSize*returns[i], grad)
	}
	l.episode = l.episode[:0]
}

// Policy exposes theta.
func (l *Reinforce) Policy() mat.Matrix { return l.theta }

func softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	peak := floats.Max(x)
	for i, v := range x {
		out[i] = math.Exp(v - peak)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
