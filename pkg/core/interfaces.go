package core

import (
	"gonum.org/v1/gonum/mat"
)

// Validator answers whether a cell can be entered and where the goal is.
// Actors receive it on every step instead of holding a world reference.
type Validator interface {
	ValidateMove(candidate Position) bool
	EndPosition() Position
}

// Environment is what a training loop drives.
type Environment interface {
	Validator
	// Step advances one actor by a raw action tensor
	Step(actor int, action mat.Matrix) (Transition, error)
	// Observe returns the current world snapshot
	Observe() Observation
	// PerformanceReturn is the summed return of all actors this episode
	PerformanceReturn() float32
	// Reset puts every actor back on its start cell
	Reset()
	Start() error
	Stop()
	Training() bool
}
