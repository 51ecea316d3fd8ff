package environment

import (
	"errors"
	"sync"
	"testing"

	"github.com/boristopalov/gridworld/pkg/agent"
	"github.com/boristopalov/gridworld/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func pos(r, c int) core.Position {
	return core.Position{Row: r, Col: c}
}

func TestDefaultWorld(t *testing.T) {
	w := Default()
	assert.True(t, w.Training())
	assert.Equal(t, 10, w.Length())
	assert.Equal(t, 10, w.Width())
	assert.Equal(t, pos(9, 9), w.EndPosition())
	assert.Len(t, w.Walls(), 12)
	require.Len(t, w.Actors(), 1)
	assert.Equal(t, pos(0, 0), w.Actors()[0].Current)
	assert.Equal(t, core.Idle, w.State())
}

func TestSetWorldState(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		w, err := SetWorldState(false, 4, 5, []core.Position{pos(1, 1), pos(1, 1), pos(3, 4)}, pos(0, 4),
			[]core.Position{pos(0, 0), pos(3, 0)})
		require.NoError(t, err)
		assert.False(t, w.Training())
		assert.Equal(t, []core.Position{pos(1, 1), pos(3, 4)}, w.Walls())
		assert.Len(t, w.Actors(), 2)

		for _, p := range append(w.Walls(), w.EndPosition()) {
			assert.True(t, p.InBounds(w.Length(), w.Width()))
		}
	})

	tests := []struct {
		name   string
		walls  []core.Position
		end    core.Position
		actors []core.Position
		want   []error
	}{
		{
			name:   "wall on goal",
			walls:  []core.Position{pos(2, 2)},
			end:    pos(2, 2),
			actors: []core.Position{pos(0, 0)},
			want:   []error{ErrGoalCollision},
		},
		{
			name:   "actor on goal",
			end:    pos(1, 1),
			actors: []core.Position{pos(1, 1)},
			want:   []error{ErrGoalCollision},
		},
		{
			name:   "actor on wall",
			walls:  []core.Position{pos(0, 1)},
			end:    pos(2, 2),
			actors: []core.Position{pos(0, 1)},
			want:   []error{ErrWallCollision},
		},
		{
			name:   "actors share a start",
			end:    pos(2, 2),
			actors: []core.Position{pos(0, 0), pos(0, 0)},
			want:   []error{ErrActorCollision},
		},
		{
			name:   "negative wall",
			walls:  []core.Position{pos(-1, 0)},
			end:    pos(2, 2),
			actors: []core.Position{pos(0, 0)},
			want:   []error{ErrOutOfBounds},
		},
		{
			name:   "actor past width",
			end:    pos(2, 2),
			actors: []core.Position{pos(0, 3)},
			want:   []error{ErrOutOfBounds},
		},
		{
			name:   "goal off grid",
			end:    pos(3, 0),
			actors: []core.Position{pos(0, 0)},
			want:   []error{ErrOutOfBounds},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := SetWorldState(true, 3, 3, tt.walls, tt.end, tt.actors)
			assert.Nil(t, w)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
			assert.Len(t, cfgErr.Violations(), len(tt.want))
		})
	}

	t.Run("every violation is reported", func(t *testing.T) {
		_, err := SetWorldState(true, 3, 3,
			[]core.Position{pos(2, 2), pos(5, 0), pos(0, 1)},
			pos(2, 2),
			[]core.Position{pos(0, 1), pos(2, 2), pos(0, 9)})
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)

		kinds := make([]error, 0)
		for _, v := range cfgErr.Violations() {
			kinds = append(kinds, v.Kind)
		}
		assert.Equal(t, []error{
			ErrGoalCollision, // wall (2,2)
			ErrOutOfBounds,   // wall (5,0)
			ErrWallCollision, // actor (0,1)
			ErrGoalCollision, // actor (2,2)
			ErrWallCollision, // actor (2,2)
			ErrOutOfBounds,   // actor (0,9)
		}, kinds)
		assert.Contains(t, err.Error(), "wall at (5,0) is out of length bounds of 3")
		assert.Contains(t, err.Error(), "actor at (0,9) is out of width bounds of 3")
	})

	t.Run("non positive dimensions", func(t *testing.T) {
		_, err := SetWorldState(true, 0, 4, nil, pos(0, 0), nil)
		assert.ErrorIs(t, err, ErrInvalidDimensions)
	})
}

func TestValidateMove(t *testing.T) {
	w := Default()
	before := w.Observe()

	for _, wall := range DefaultWalls {
		assert.False(t, w.ValidateMove(wall), "wall %s", wall)
	}
	for _, p := range []core.Position{pos(-1, 0), pos(0, -1), pos(10, 0), pos(0, 10)} {
		assert.False(t, w.ValidateMove(p), "off grid %s", p)
	}
	assert.True(t, w.ValidateMove(pos(9, 9)), "goal is enterable")
	assert.True(t, w.ValidateMove(pos(2, 5)), "gap in the wall")
	assert.True(t, w.ValidateMove(pos(0, 0)))

	for i := 0; i < 3; i++ {
		w.ValidateMove(pos(2, 1))
	}
	assert.Equal(t, before, w.Observe())
}

func TestDefaultWorldScenario(t *testing.T) {
	w := Default()

	want := []core.Position{pos(0, 1), pos(0, 2), pos(0, 3)}
	for _, p := range want {
		tr, err := w.Step(0, core.Right.Action())
		require.NoError(t, err)
		assert.Equal(t, p, tr.Position)
		assert.Equal(t, float32(2), tr.Reward)
		assert.True(t, tr.Valid)
	}
	assert.Equal(t, float32(6), w.PerformanceReturn())

	blocked, err := SetWorldState(true, 10, 10, DefaultWalls, DefaultEndPosition, []core.Position{pos(1, 1)})
	require.NoError(t, err)
	tr, err := blocked.Step(0, core.Down.Action())
	require.NoError(t, err)
	assert.Equal(t, pos(1, 1), tr.Position)
	assert.Equal(t, float32(-2), tr.Reward)
	assert.False(t, tr.Valid)
}

func TestStepErrors(t *testing.T) {
	w := Default()

	_, err := w.Step(1, core.Up.Action())
	assert.ErrorIs(t, err, ErrActorIndex)

	_, err = w.Step(0, mat.NewVecDense(2, []float64{0, 1}))
	assert.ErrorIs(t, err, agent.ErrActionShape)
	assert.Equal(t, pos(0, 0), w.Actors()[0].Current)
}

func TestActorsAreSnapshots(t *testing.T) {
	w := Default()
	before := w.Observe()

	actors := w.Actors()
	actors[0].Current = pos(-1, 0)
	actors[0].Return = 99
	assert.Equal(t, before, w.Observe())
	assert.Zero(t, w.PerformanceReturn())

	_, err := w.Step(0, core.Right.Action())
	require.NoError(t, err)
	assert.Equal(t, pos(-1, 0), actors[0].Current)
	assert.Equal(t, agent.Snapshot{Initial: pos(0, 0), Current: pos(0, 1), Return: 2, Steps: 1}, w.Actors()[0])
}

func TestObserveAndReset(t *testing.T) {
	w, err := SetWorldState(true, 3, 4, []core.Position{pos(1, 1)}, pos(2, 3), []core.Position{pos(0, 0)})
	require.NoError(t, err)

	_, err = w.Step(0, core.Right.Action())
	require.NoError(t, err)

	obs := w.Observe()
	assert.Equal(t, []core.Position{pos(0, 1)}, obs.Actors)
	m := obs.Matrix()
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, core.CellActor, m.At(0, 1))
	assert.Equal(t, core.CellWall, m.At(1, 1))
	assert.Equal(t, core.CellGoal, m.At(2, 3))
	assert.Equal(t, core.CellEmpty, m.At(0, 0))

	w.Reset()
	assert.Equal(t, []core.Position{pos(0, 0)}, w.Observe().Actors)
	assert.Zero(t, w.PerformanceReturn())
}

func TestRunState(t *testing.T) {
	w := Default()

	require.NoError(t, w.Start())
	assert.True(t, w.Running())
	assert.ErrorIs(t, w.Start(), ErrAlreadyRunning)

	w.Stop()
	w.Stop()
	assert.False(t, w.Running())
	require.NoError(t, w.Start())
	w.Stop()

	t.Run("one concurrent start wins", func(t *testing.T) {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := w.Start()
				if err != nil && !errors.Is(err, ErrAlreadyRunning) {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
