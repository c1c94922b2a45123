// v0
// internal/agent/ppo.go
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

const (
	ppoEpochs        = 10
	ppoClip          = 0.1
	ppoEntropyCoef   = 0.01
	ppoValueCoef     = 0.5
	ppoMaxGradNorm   = 0.5
	ppoInitScale     = 0.01
	advantageEpsilon = 1e-8
)

type rollout struct {
	obs     *mat.VecDense
	action  int
	reward  float64
	logProb float64
	done    bool
}

// PPO is proximal policy optimisation with a linear softmax actor and a
// linear critic over the normalised observation vector. The action space
// is the flat floor-major space of env.DecodeFlat. Each finished episode
// is replayed for a fixed number of epochs with the clipped surrogate,
// a value loss and an entropy bonus.
type PPO struct {
	params Params
	rng    *rand.Rand
	floors int

	actor   *mat.Dense // actions x (obs+1), last column is the bias
	critic  *mat.VecDense
	episode []rollout
}

// NewPPO initialises both heads with small gaussian weights.
func NewPPO(floors int, p Params, rng *rand.Rand) (*PPO, error) {
	if err := validate(floors, rng); err != nil {
		return nil, err
	}
	in := env.ObservationSize(floors) + 1
	actions := floors * env.ActionsPerFloor
	actor := make([]float64, actions*in)
	for i := range actor {
		actor[i] = rng.NormFloat64() * ppoInitScale
	}
	critic := make([]float64, in)
	for i := range critic {
		critic[i] = rng.NormFloat64() * ppoInitScale
	}
	return &PPO{
		params: p,
		rng:    rng,
		floors: floors,
		actor:  mat.NewDense(actions, in, actor),
		critic: mat.NewVecDense(in, critic),
	}, nil
}

func (l *PPO) Name() string { return AlgorithmPPO }

func (l *PPO) Begin(int) { l.episode = l.episode[:0] }

// Act samples a flat action from the current policy.
func (l *PPO) Act(s building.Snapshot) env.Action {
	pi := l.policy(features(s))
	a, err := env.DecodeFlat(sample(l.rng, pi), l.floors)
	if err != nil {
		return env.Action{Kind: env.NoOp}
	}
	return a
}

// Learn records the transition. The policy does not change within an
// episode, so the log-probability taken here is the behaviour one.
func (l *PPO) Learn(tr Transition) {
	idx, err := env.EncodeFlat(tr.Action)
	if err != nil || tr.Action.Floor < 0 || tr.Action.Floor >= l.floors {
		return
	}
	x := features(tr.State)
	l.episode = append(l.episode, rollout{
		obs:     x,
		action:  idx,
		reward:  tr.Reward,
		logProb: math.Log(l.policy(x)[idx] + logProbEpsilon),
		done:    tr.Done,
	})
}

// End runs the update on the finished episode. Episodes shorter than two
// steps are discarded.
func (l *PPO) End() {
	defer func() { l.episode = l.episode[:0] }()
	n := len(l.episode)
	if n < 2 {
		return
	}

	values := make([]float64, n)
	for i, r := range l.episode {
		values[i] = l.value(r.obs)
	}
	advantages := make([]float64, n)
	returns := make([]float64, n)
	running := 0.0
	for t := n - 1; t >= 0; t-- {
		next, keep := 0.0, 1.0
		if t+1 < n {
			next = values[t+1]
		}
		if l.episode[t].done {
			keep = 0
		}
		delta := l.episode[t].reward + l.params.Gamma*next*keep - values[t]
		running = running*l.params.Gamma*keep + delta
		advantages[t] = running
		returns[t] = running + values[t]
	}
	mean, std := stat.MeanStdDev(advantages, nil)
	floats.AddConst(-mean, advantages)
	floats.Scale(1/(std+advantageEpsilon), advantages)

	rows, cols := l.actor.Dims()
	actorGrad := mat.NewDense(rows, cols, nil)
	criticGrad := mat.NewVecDense(cols, nil)
	dz := make([]float64, rows)
	scale := 1 / float64(n)

	for epoch := 0; epoch < ppoEpochs; epoch++ {
		actorGrad.Zero()
		criticGrad.Zero()
		for i, r := range l.episode {
			pi := l.policy(r.obs)
			entropy := 0.0
			for _, p := range pi {
				entropy -= p * math.Log(p+logProbEpsilon)
			}

			ratio := math.Exp(math.Log(pi[r.action]+logProbEpsilon) - r.logProb)
			adv := advantages[i]
			clipped := (adv > 0 && ratio > 1+ppoClip) || (adv < 0 && ratio < 1-ppoClip)
			for j, p := range pi {
				g := 0.0
				if !clipped {
					onehot := 0.0
					if j == r.action {
						onehot = 1
					}
					g = ratio * adv * (onehot - p)
				}
				g -= ppoEntropyCoef * p * (math.Log(p+logProbEpsilon) + entropy)
				dz[j] = g * scale
			}
			// ascent direction for the actor, descent for the critic
			actorGrad.RankOne(actorGrad, 1, mat.NewVecDense(rows, dz), r.obs)
			criticGrad.AddScaledVec(criticGrad, 2*ppoValueCoef*(returns[i]-l.value(r.obs))*scale, r.obs)
		}
		clipNorm(actorGrad.RawMatrix().Data, criticGrad.RawVector().Data)
		l.actor.Add(l.actor, scaled(actorGrad, l.params.StepSize))
		l.critic.AddScaledVec(l.critic, l.params.StepSize, criticGrad)
	}
}

func (l *PPO) policy(x *mat.VecDense) []float64 {
	rows, _ := l.actor.Dims()
	z := mat.NewVecDense(rows, nil)
	z.MulVec(l.actor, x)
	return softmax(z.RawVector().Data)
}

func (l *PPO) value(x *mat.VecDense) float64 {
	return mat.Dot(l.critic, x)
}

// Actor and Critic expose the linear heads. The last column of the actor
// and the last element of the critic are biases.
func (l *PPO) Actor() mat.Matrix  { return l.actor }
func (l *PPO) Critic() mat.Vector { return l.critic }

// features appends a constant bias input to the observation.
func features(s building.Snapshot) *mat.VecDense {
	obs := env.Observation(s)
	n := obs.Len()
	x := mat.NewVecDense(n+1, nil)
	x.CopyVec(obs)
	x.SetVec(n, 1)
	return x
}

// clipNorm rescales the joint gradient so its L2 norm is at most
// ppoMaxGradNorm.
func clipNorm(parts ...[]float64) {
	total := 0.0
	for _, p := range parts {
		total += floats.Dot(p, p)
	}
	norm := math.Sqrt(total)
	if norm <= ppoMaxGradNorm {
		return
	}
	for _, p := range parts {
		floats.Scale(ppoMaxGradNorm/norm, p)
	}
}

func scaled(m *mat.Dense, f float64) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}
