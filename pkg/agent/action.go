package agent

import (
	"errors"
	"fmt"
	"math"

	"github.com/boristopalov/gridworld/pkg/core"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrActionShape      = errors.New("action must be a single scalar")
	ErrActionNotFinite  = errors.New("action is not a finite number")
	ErrActionOutOfRange = errors.New("action is not a direction index in 0..3")
)

// ActionDecodeError reports an action tensor that does not map to exactly
// one move.
type ActionDecodeError struct {
	Rows, Cols int
	Value      float64
	Err        error
}

func (e *ActionDecodeError) Error() string {
	if errors.Is(e.Err, ErrActionShape) {
		return fmt.Sprintf("decode action of shape %dx%d: %v", e.Rows, e.Cols, e.Err)
	}
	return fmt.Sprintf("decode action %v: %v", e.Value, e.Err)
}

func (e *ActionDecodeError) Unwrap() error {
	return e.Err
}

// DecodeAction maps a 1x1 action tensor holding 0, 1, 2 or 3 to
// Up, Down, Left or Right.
func DecodeAction(action mat.Matrix) (core.Move, error) {
	if action == nil {
		return 0, &ActionDecodeError{Err: ErrActionShape}
	}
	r, c := action.Dims()
	if r != 1 || c != 1 {
		return 0, &ActionDecodeError{Rows: r, Cols: c, Err: ErrActionShape}
	}

	v := action.At(0, 0)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ActionDecodeError{Rows: r, Cols: c, Value: v, Err: ErrActionNotFinite}
	}
	if v != math.Trunc(v) || math.Abs(v) > float64(len(core.Moves)) {
		return 0, &ActionDecodeError{Rows: r, Cols: c, Value: v, Err: ErrActionOutOfRange}
	}
	move := core.Move(int(v))
	if !move.Valid() {
		return 0, &ActionDecodeError{Rows: r, Cols: c, Value: v, Err: ErrActionOutOfRange}
	}
	return move, nil
}
