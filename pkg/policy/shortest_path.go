package policy

import (
	"context"
	"math/rand"

	"github.com/boristopalov/gridworld/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// ShortestPath walks the shortest wall-free route to the goal. Ties are
// broken in Up, Down, Left, Right order. When the goal cannot be reached it
// wanders to a random open neighbour.
type ShortestPath struct {
	rng *rand.Rand
}

func NewShortestPath(seed int64) *ShortestPath {
	return &ShortestPath{rng: rand.New(rand.NewSource(seed))}
}

func (p *ShortestPath) Name() string {
	return "shortest-path"
}

func (p *ShortestPath) Act(ctx context.Context, obs core.Observation, actor int) (mat.Matrix, error) {
	from, err := actorPosition(obs, actor)
	if err != nil {
		return nil, err
	}
	move, ok := NextMove(obs, from)
	if ok {
		return move.Action(), nil
	}

	open := make([]core.Move, 0, len(core.Moves))
	for _, m := range core.Moves {
		if !obs.Blocked(from.Shift(m)) {
			open = append(open, m)
		}
	}
	if len(open) == 0 {
		return core.Up.Action(), nil
	}
	return open[p.rng.Intn(len(open))].Action(), nil
}

// NextMove returns the first move of a shortest route from `from` to the
// goal, or false if the goal is unreachable or already reached.
func NextMove(obs core.Observation, from core.Position) (core.Move, bool) {
	if from == obs.Goal {
		return 0, false
	}
	dist := distancesToGoal(obs)

	best, bestDist := core.Move(0), -1
	for _, m := range core.Moves {
		d, ok := dist[from.Shift(m)]
		if !ok {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = m, d
		}
	}
	return best, bestDist >= 0
}

// distancesToGoal runs a breadth-first search outward from the goal over
// open cells.
func distancesToGoal(obs core.Observation) map[core.Position]int {
	walls := make(map[core.Position]struct{}, len(obs.Walls))
	for _, w := range obs.Walls {
		walls[w] = struct{}{}
	}

	dist := map[core.Position]int{obs.Goal: 0}
	queue := []core.Position{obs.Goal}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, m := range core.Moves {
			next := cur.Shift(m)
			if !next.InBounds(obs.Length, obs.Width) {
				continue
			}
			if _, wall := walls[next]; wall {
				continue
			}
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return dist
}
