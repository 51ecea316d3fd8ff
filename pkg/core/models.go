package core

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Position is a (row, column) cell on the grid. Coordinates are signed so
// that neighbour arithmetic never wraps; a position is only meaningful to a
// world once it has been checked against the world's bounds.
type Position struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Shift returns the neighbouring cell in direction m.
func (p Position) Shift(m Move) Position {
	dr, dc := m.Delta()
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

// InBounds reports whether p lies in [0,length) x [0,width).
func (p Position) InBounds(length, width int) bool {
	return p.Row >= 0 && p.Row < length && p.Col >= 0 && p.Col < width
}

// Move is one of the four cardinal directions. The numeric value is the
// action index an agent emits for it.
type Move int

const (
	Up Move = iota
	Down
	Left
	Right
)

// Moves lists every move in action-index order.
var Moves = []Move{Up, Down, Left, Right}

// Delta returns the row and column offset of the move.
func (m Move) Delta() (int, int) {
	switch m {
	case Up:
		return -1, 0
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	case Right:
		return 0, 1
	default:
		return 0, 0
	}
}

// Valid reports whether m is one of the four moves.
func (m Move) Valid() bool {
	return m >= Up && m <= Right
}

func (m Move) String() string {
	switch m {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return fmt.Sprintf("Move(%d)", int(m))
	}
}

// ParseMove maps a direction name (case-insensitive) to its Move.
func ParseMove(s string) (Move, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP":
		return Up, true
	case "DOWN":
		return Down, true
	case "LEFT":
		return Left, true
	case "RIGHT":
		return Right, true
	}
	return 0, false
}

// Action returns the 1x1 action tensor that decodes back to m.
func (m Move) Action() *mat.VecDense {
	return mat.NewVecDense(1, []float64{float64(m)})
}

// Transition is the outcome of stepping one actor.
type Transition struct {
	Position Position `json:"position"`
	Reward   float32  `json:"reward"`
	Valid    bool     `json:"valid"` // false when the move hit a wall or the grid edge
	Done     bool     `json:"done"`  // the actor stands on the goal
}

// Cell codes used by Observation.Matrix.
const (
	CellEmpty float64 = iota
	CellWall
	CellGoal
	CellActor
)

// Observation is a snapshot of the world as seen by a policy.
type Observation struct {
	Length int        `json:"length"`
	Width  int        `json:"width"`
	Walls  []Position `json:"walls"`
	Goal   Position   `json:"goal"`
	Actors []Position `json:"actors"`
}

// Matrix encodes the observation as a length x width grid of cell codes.
// An actor standing on the goal is reported as CellActor.
func (o Observation) Matrix() *mat.Dense {
	m := mat.NewDense(o.Length, o.Width, nil)
	for _, w := range o.Walls {
		m.Set(w.Row, w.Col, CellWall)
	}
	m.Set(o.Goal.Row, o.Goal.Col, CellGoal)
	for _, a := range o.Actors {
		m.Set(a.Row, a.Col, CellActor)
	}
	return m
}

// Blocked reports whether p is off the grid or a wall.
func (o Observation) Blocked(p Position) bool {
	if !p.InBounds(o.Length, o.Width) {
		return true
	}
	for _, w := range o.Walls {
		if w == p {
			return true
		}
	}
	return false
}

// RunState is the lifecycle state of a world.
type RunState int32

const (
	Idle RunState = iota
	Running
)

func (s RunState) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}
