package agent

import "github.com/boristopalov/gridworld/pkg/core"

const (
	ValidMoveReward   float32 = 1.0
	InvalidMoveReward float32 = -2.0
)

// ManhattanDistance is |a.Row-b.Row| + |a.Col-b.Col|.
func ManhattanDistance(a, b core.Position) int {
	return absInt(a.Row-b.Row) + absInt(a.Col-b.Col)
}

// ComputeReward combines the base reward for the move with a shaping term
// equal to how much closer the step brought the actor to end. A rejected
// move keeps next == prev, so it earns the bare penalty.
func ComputeReward(prev, next, end core.Position, validMove bool) float32 {
	base := InvalidMoveReward
	if validMove {
		base = ValidMoveReward
	}
	shaping := ManhattanDistance(prev, end) - ManhattanDistance(next, end)
	return base + float32(shaping)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
