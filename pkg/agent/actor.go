// Package agent holds the mobile actors of a grid world and the rules for
// moving them: action decoding, the step function and the reward.
package agent

import (
	"github.com/boristopalov/gridworld/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// Actor is one mobile agent on the grid. The world owns its actors and
// passes itself in on every step.
type Actor struct {
	initial core.Position
	current core.Position
	ret     float32 // return accumulated this episode
	steps   int
}

// NewActor creates an actor standing on its start cell.
func NewActor(start core.Position) *Actor {
	return &Actor{initial: start, current: start}
}

func (a *Actor) InitialPosition() core.Position {
	return a.initial
}

func (a *Actor) CurrentPosition() core.Position {
	return a.current
}

// Return is the reward accumulated since the last reset.
func (a *Actor) Return() float32 {
	return a.ret
}

// Steps is the number of decoded steps since the last reset.
func (a *Actor) Steps() int {
	return a.steps
}

// Snapshot is a read-only copy of an actor's state.
type Snapshot struct {
	Initial core.Position
	Current core.Position
	Return  float32
	Steps   int
}

func (a *Actor) Snapshot() Snapshot {
	return Snapshot{Initial: a.initial, Current: a.current, Return: a.ret, Steps: a.steps}
}

// Reset puts the actor back on its start cell and clears its counters.
func (a *Actor) Reset() {
	a.current = a.initial
	a.ret = 0
	a.steps = 0
}

// MovePosition decodes action, asks world whether the neighbouring cell can
// be entered and commits the move if so. A blocked move leaves the actor in
// place and is penalised; it is not an error. The only error is an action
// that does not decode to a move, in which case nothing changes.
func (a *Actor) MovePosition(world core.Validator, action mat.Matrix) (core.Transition, error) {
	move, err := DecodeAction(action)
	if err != nil {
		return core.Transition{Position: a.current}, err
	}
	return a.apply(world, move), nil
}

func (a *Actor) apply(world core.Validator, move core.Move) core.Transition {
	end := world.EndPosition()
	prev := a.current
	candidate := prev.Shift(move)

	valid := world.ValidateMove(candidate)
	if valid {
		a.current = candidate
	}
	reward := ComputeReward(prev, a.current, end, valid)

	a.ret += reward
	a.steps++
	return core.Transition{
		Position: a.current,
		Reward:   reward,
		Valid:    valid,
		Done:     a.current == end,
	}
}
