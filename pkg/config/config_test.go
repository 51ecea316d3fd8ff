package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boristopalov/gridworld/pkg/core"
	"github.com/boristopalov/gridworld/pkg/environment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Episodes)
	assert.Equal(t, 100, cfg.MaxSteps)
	assert.Equal(t, PolicyShortestPath, cfg.Policy.Type)
	assert.Equal(t, 0.1, cfg.Policy.Epsilon)

	w, err := cfg.World.Build()
	require.NoError(t, err)
	assert.Equal(t, environment.Default().Observe(), w.Observe())
	assert.True(t, w.Training())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
name: small
episodes: 3
max_steps: 20
seed: 9
policy:
  type: random
  epsilon: 0.5
world:
  training: false
  length: 3
  width: 4
  walls:
    - {row: 1, col: 1}
  end: {row: 2, col: 3}
  actors:
    - {row: 0, col: 0}
output:
  stats_csv: stats.csv
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "small", cfg.Name)
	assert.Equal(t, 3, cfg.Episodes)
	assert.Equal(t, int64(9), cfg.Seed)
	assert.Equal(t, PolicyRandom, cfg.Policy.Type)
	assert.Equal(t, "openai", cfg.Policy.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stats.csv", cfg.Output.StatsCSV)
	assert.Equal(t, []core.Position{{Row: 1, Col: 1}}, cfg.World.Walls)
	assert.False(t, cfg.World.IsTraining())

	w, err := cfg.World.Build()
	require.NoError(t, err)
	assert.Equal(t, 3, w.Length())
	assert.Equal(t, core.Position{Row: 2, Col: 3}, w.EndPosition())
	assert.False(t, w.Training())
}

func TestLoadConfigDefaultsWorld(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "episodes: 2\nworld:\n  training: false\n"))
	require.NoError(t, err)
	assert.Equal(t, environment.DefaultWalls, cfg.World.Walls)
	assert.False(t, cfg.World.IsTraining())
}

func TestLoadConfigKeepsPartialWorld(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "world:\n  training: false\n  end: {row: 5, col: 5}\n"))
	require.NoError(t, err)
	assert.Equal(t, core.Position{Row: 5, Col: 5}, cfg.World.End)
	assert.Equal(t, environment.DefaultLength, cfg.World.Length)
	assert.Equal(t, environment.DefaultWalls, cfg.World.Walls)
	assert.False(t, cfg.World.IsTraining())

	w, err := cfg.World.Build()
	require.NoError(t, err)
	assert.Equal(t, core.Position{Row: 5, Col: 5}, w.EndPosition())
	assert.True(t, Default().World.IsTraining())
}

func TestLoadConfigExplicitZeros(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "episodes: 0\nmax_steps: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Episodes)
	assert.Zero(t, cfg.MaxSteps)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "episodes must be positive")
	assert.Contains(t, err.Error(), "max_steps must be positive")

	cfg, err = LoadConfig(writeConfig(t, "name: short\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Episodes)
	assert.Equal(t, 100, cfg.MaxSteps)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "episodes: [1, 2"))
	assert.Error(t, err)
}

func TestBuildReportsEveryViolation(t *testing.T) {
	world := WorldConfig{
		Length: 3,
		Width:  3,
		Walls:  []core.Position{{Row: 2, Col: 2}, {Row: 4, Col: 0}},
		End:    core.Position{Row: 2, Col: 2},
		Actors: []core.Position{{Row: 2, Col: 2}},
	}
	_, err := world.Build()

	var cfgErr *environment.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Violations(), 4)
	assert.ErrorIs(t, err, environment.ErrGoalCollision)
	assert.ErrorIs(t, err, environment.ErrWallCollision)
	assert.ErrorIs(t, err, environment.ErrOutOfBounds)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GRIDWORLD_EPISODES", "4")
	t.Setenv("GRIDWORLD_MAX_STEPS", "50")
	t.Setenv("GRIDWORLD_SEED", "77")
	t.Setenv("GRIDWORLD_POLICY", PolicyLLM)
	t.Setenv("GRIDWORLD_MODEL", "gemini-2.0-flash")
	t.Setenv("GRIDWORLD_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 4, cfg.Episodes)
	assert.Equal(t, 50, cfg.MaxSteps)
	assert.Equal(t, int64(77), cfg.Seed)
	assert.Equal(t, PolicyLLM, cfg.Policy.Type)
	assert.Equal(t, "gemini-2.0-flash", cfg.Policy.Model)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Setenv("GRIDWORLD_EPISODES", "many")
	t.Setenv("GRIDWORLD_SEED", "x")
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRIDWORLD_EPISODES")
	assert.Contains(t, err.Error(), "GRIDWORLD_SEED")
	assert.Equal(t, 4, cfg.Episodes)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Episodes = 0
	cfg.MaxSteps = -1
	cfg.Policy.Epsilon = 2
	cfg.Policy.Type = "greedy"
	cfg.Logging.Level = "loud"
	cfg.World.Actors = nil

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"episodes", "max_steps", "epsilon", "greedy", "loud", "no actors"} {
		assert.Contains(t, err.Error(), want)
	}
}
