// Package policy contains action selectors that drive actors through a
// world the same way an external training loop would: by emitting raw
// action tensors.
package policy

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/boristopalov/gridworld/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// Policy picks the next action for one actor.
type Policy interface {
	Name() string
	Act(ctx context.Context, obs core.Observation, actor int) (mat.Matrix, error)
}

// Recorder is implemented by policies that learn from what happened after
// their action.
type Recorder interface {
	Record(actor int, action mat.Matrix, tr core.Transition)
}

// Random picks one of the four moves uniformly.
type Random struct {
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (p *Random) Name() string {
	return "random"
}

func (p *Random) Act(ctx context.Context, obs core.Observation, actor int) (mat.Matrix, error) {
	return core.Moves[p.rng.Intn(len(core.Moves))].Action(), nil
}

// EpsilonGreedy follows base and explores with a random move with
// probability epsilon.
type EpsilonGreedy struct {
	base    Policy
	epsilon float64
	rng     *rand.Rand
}

func NewEpsilonGreedy(base Policy, epsilon float64, seed int64) *EpsilonGreedy {
	if epsilon < 0 {
		epsilon = 0
	}
	if epsilon > 1 {
		epsilon = 1
	}
	return &EpsilonGreedy{base: base, epsilon: epsilon, rng: rand.New(rand.NewSource(seed))}
}

func (p *EpsilonGreedy) Name() string {
	return fmt.Sprintf("%s(eps=%.2f)", p.base.Name(), p.epsilon)
}

func (p *EpsilonGreedy) Act(ctx context.Context, obs core.Observation, actor int) (mat.Matrix, error) {
	if p.rng.Float64() < p.epsilon {
		return core.Moves[p.rng.Intn(len(core.Moves))].Action(), nil
	}
	return p.base.Act(ctx, obs, actor)
}

func (p *EpsilonGreedy) Record(actor int, action mat.Matrix, tr core.Transition) {
	if r, ok := p.base.(Recorder); ok {
		r.Record(actor, action, tr)
	}
}

func actorPosition(obs core.Observation, actor int) (core.Position, error) {
	if actor < 0 || actor >= len(obs.Actors) {
		return core.Position{}, fmt.Errorf("observation has no actor %d", actor)
	}
	return obs.Actors[actor], nil
}
