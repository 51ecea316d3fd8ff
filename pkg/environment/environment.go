// Package environment implements the grid world: a bounded grid with walls,
// a goal cell and the actors that move on it.
package environment

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/boristopalov/gridworld/pkg/agent"
	"github.com/boristopalov/gridworld/pkg/core"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultLength = 10
	DefaultWidth  = 10
)

var (
	DefaultEndPosition   = core.Position{Row: 9, Col: 9}
	DefaultActorPosition = core.Position{Row: 0, Col: 0}

	// DefaultWalls splits the default grid in two with a single gap at (2,5).
	DefaultWalls = []core.Position{
		{Row: 2, Col: 1}, {Row: 2, Col: 2}, {Row: 2, Col: 3}, {Row: 2, Col: 4},
		{Row: 3, Col: 4}, {Row: 4, Col: 4}, {Row: 5, Col: 4}, {Row: 6, Col: 4},
		{Row: 7, Col: 4}, {Row: 2, Col: 6}, {Row: 2, Col: 7}, {Row: 2, Col: 8},
	}
)

var _ core.Environment = (*World)(nil)

// World is a validated grid world. Its walls, goal and actor list never
// change after construction; only actor positions and the run state do.
type World struct {
	training bool
	length   int
	width    int
	walls    map[core.Position]struct{}
	end      core.Position
	actors   []*agent.Actor
	state    atomic.Int32
}

// Default returns the built-in 10x10 training world with one actor at (0,0)
// and the goal at (9,9).
func Default() *World {
	w, err := SetWorldState(true, DefaultLength, DefaultWidth, DefaultWalls, DefaultEndPosition,
		[]core.Position{DefaultActorPosition})
	if err != nil {
		panic(fmt.Sprintf("default world is invalid: %v", err))
	}
	return w
}

// SetWorldState validates a world configuration and builds the world. Every
// violation is reported in the returned *ConfigError, not just the first.
func SetWorldState(training bool, length, width int, wallPositions []core.Position, endPosition core.Position, initialActorPositions []core.Position) (*World, error) {
	var check validation

	if length <= 0 || width <= 0 {
		check.add(&Violation{
			Kind:    ErrInvalidDimensions,
			Subject: "grid",
			Cell:    core.Position{Row: length, Col: width},
		})
		return nil, check.err()
	}

	if !endPosition.InBounds(length, width) {
		check.add(outOfBounds("end", endPosition, length, width))
	}

	walls := make(map[core.Position]struct{}, len(wallPositions))
	for _, wall := range wallPositions {
		if _, seen := walls[wall]; seen {
			continue
		}
		walls[wall] = struct{}{}

		if !wall.InBounds(length, width) {
			check.add(outOfBounds("wall", wall, length, width))
		}
		if wall == endPosition {
			check.add(&Violation{Kind: ErrGoalCollision, Subject: "wall", Cell: wall, Conflict: endPosition})
		}
	}

	starts := make(map[core.Position]struct{}, len(initialActorPositions))
	for _, pos := range initialActorPositions {
		if !pos.InBounds(length, width) {
			check.add(outOfBounds("actor", pos, length, width))
		}
		if pos == endPosition {
			check.add(&Violation{Kind: ErrGoalCollision, Subject: "actor", Cell: pos, Conflict: endPosition})
		}
		if _, ok := walls[pos]; ok {
			check.add(&Violation{Kind: ErrWallCollision, Subject: "actor", Cell: pos, Conflict: pos})
		}
		if _, ok := starts[pos]; ok {
			check.add(&Violation{Kind: ErrActorCollision, Subject: "actor", Cell: pos, Conflict: pos})
		}
		starts[pos] = struct{}{}
	}

	if err := check.err(); err != nil {
		return nil, err
	}

	actors := make([]*agent.Actor, 0, len(initialActorPositions))
	for _, pos := range initialActorPositions {
		actors = append(actors, agent.NewActor(pos))
	}

	return &World{
		training: training,
		length:   length,
		width:    width,
		walls:    walls,
		end:      endPosition,
		actors:   actors,
	}, nil
}

func outOfBounds(subject string, p core.Position, length, width int) *Violation {
	bound := fmt.Sprintf("length bounds of %d", length)
	if p.Row >= 0 && p.Row < length {
		bound = fmt.Sprintf("width bounds of %d", width)
	}
	return &Violation{Kind: ErrOutOfBounds, Subject: subject, Cell: p, Bound: bound}
}

// ValidateMove reports whether candidate is inside the grid and not a wall.
// The goal is an ordinary enterable cell.
func (w *World) ValidateMove(candidate core.Position) bool {
	if !candidate.InBounds(w.length, w.width) {
		return false
	}
	_, wall := w.walls[candidate]
	return !wall
}

func (w *World) Training() bool {
	return w.training
}

func (w *World) Length() int {
	return w.length
}

func (w *World) Width() int {
	return w.width
}

func (w *World) EndPosition() core.Position {
	return w.end
}

// Walls returns the wall cells in row-major order.
func (w *World) Walls() []core.Position {
	walls := make([]core.Position, 0, len(w.walls))
	for p := range w.walls {
		walls = append(walls, p)
	}
	sort.Slice(walls, func(i, j int) bool {
		if walls[i].Row != walls[j].Row {
			return walls[i].Row < walls[j].Row
		}
		return walls[i].Col < walls[j].Col
	})
	return walls
}

// Actors returns a snapshot of every actor. Actors only move through Step.
func (w *World) Actors() []agent.Snapshot {
	actors := make([]agent.Snapshot, 0, len(w.actors))
	for _, a := range w.actors {
		actors = append(actors, a.Snapshot())
	}
	return actors
}

func (w *World) actor(i int) (*agent.Actor, error) {
	if i < 0 || i >= len(w.actors) {
		return nil, fmt.Errorf("actor %d: %w", i, ErrActorIndex)
	}
	return w.actors[i], nil
}

// Step moves actor i by a raw action tensor.
func (w *World) Step(i int, action mat.Matrix) (core.Transition, error) {
	a, err := w.actor(i)
	if err != nil {
		return core.Transition{}, err
	}
	return a.MovePosition(w, action)
}

// Observe returns a snapshot of walls, goal and actor positions.
func (w *World) Observe() core.Observation {
	actors := make([]core.Position, 0, len(w.actors))
	for _, a := range w.actors {
		actors = append(actors, a.CurrentPosition())
	}
	return core.Observation{
		Length: w.length,
		Width:  w.width,
		Walls:  w.Walls(),
		Goal:   w.end,
		Actors: actors,
	}
}

// PerformanceReturn sums the return of every actor since the last reset.
func (w *World) PerformanceReturn() float32 {
	var total float32
	for _, a := range w.actors {
		total += a.Return()
	}
	return total
}

// Reset starts a new episode: every actor goes back to its start cell.
func (w *World) Reset() {
	for _, a := range w.actors {
		a.Reset()
	}
}

// Start moves the world from Idle to Running. Only one caller can win; the
// others get ErrAlreadyRunning.
func (w *World) Start() error {
	if !w.state.CompareAndSwap(int32(core.Idle), int32(core.Running)) {
		return ErrAlreadyRunning
	}
	return nil
}

// Stop returns the world to Idle. Stopping an idle world does nothing.
func (w *World) Stop() {
	w.state.Store(int32(core.Idle))
}

func (w *World) Running() bool {
	return w.State() == core.Running
}

func (w *World) State() core.RunState {
	return core.RunState(w.state.Load())
}
