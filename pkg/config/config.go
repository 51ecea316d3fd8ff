// Package config loads experiment and world configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/boristopalov/gridworld/pkg/core"
	"github.com/boristopalov/gridworld/pkg/environment"
	"github.com/boristopalov/gridworld/pkg/logging"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	PolicyRandom       = "random"
	PolicyShortestPath = "shortest-path"
	PolicyLLM          = "llm"
)

type ExperimentConfig struct {
	Name     string       `yaml:"name"`
	Episodes int          `yaml:"episodes"`
	MaxSteps int          `yaml:"max_steps"`
	Seed     int64        `yaml:"seed"`
	Policy   PolicyConfig `yaml:"policy"`
	World    WorldConfig  `yaml:"world"`
	Logging  LogConfig    `yaml:"logging"`
	Output   OutputConfig `yaml:"output"`
	Server   ServerConfig `yaml:"server"`
}

type PolicyConfig struct {
	Type           string  `yaml:"type"`
	Epsilon        float64 `yaml:"epsilon"`
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	MemoryCapacity int     `yaml:"memory_capacity"`
}

// WorldConfig mirrors the arguments of environment.SetWorldState. Training
// defaults to true when unset.
type WorldConfig struct {
	Training *bool           `yaml:"training"`
	Length   int             `yaml:"length"`
	Width    int             `yaml:"width"`
	Walls    []core.Position `yaml:"walls"`
	End      core.Position   `yaml:"end"`
	Actors   []core.Position `yaml:"actors"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type OutputConfig struct {
	StatsCSV string `yaml:"stats_csv"` // per-episode CSV, skipped when empty
	Chart    string `yaml:"chart"`     // HTML return chart, skipped when empty
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in experiment: the shortest-path policy with a
// little exploration on the default 10x10 world.
func Default() *ExperimentConfig {
	return &ExperimentConfig{
		Name:     "gridworld",
		Episodes: 10,
		MaxSteps: 100,
		Seed:     1,
		Policy: PolicyConfig{
			Type:           PolicyShortestPath,
			Epsilon:        0.1,
			Provider:       "openai",
			MemoryCapacity: 100,
		},
		World:   DefaultWorld(),
		Logging: LogConfig{Level: "info"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// DefaultWorld describes environment.Default.
func DefaultWorld() WorldConfig {
	training := true
	return WorldConfig{
		Training: &training,
		Length:   environment.DefaultLength,
		Width:    environment.DefaultWidth,
		Walls:    append([]core.Position(nil), environment.DefaultWalls...),
		End:      environment.DefaultEndPosition,
		Actors:   []core.Position{environment.DefaultActorPosition},
	}
}

// LoadConfig reads a YAML experiment file over Default. Keys left out of
// the file keep their default value, field by field, so a world section
// that only sets end still runs on the default grid. Keys that are present
// are taken as written, zero values included.
func LoadConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GRIDWORLD_* environment variables.
func (c *ExperimentConfig) ApplyEnv() error {
	var result *multierror.Error

	if v, ok := os.LookupEnv("GRIDWORLD_EPISODES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("GRIDWORLD_EPISODES: %w", err))
		} else {
			c.Episodes = n
		}
	}
	if v, ok := os.LookupEnv("GRIDWORLD_MAX_STEPS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("GRIDWORLD_MAX_STEPS: %w", err))
		} else {
			c.MaxSteps = n
		}
	}
	if v, ok := os.LookupEnv("GRIDWORLD_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("GRIDWORLD_SEED: %w", err))
		} else {
			c.Seed = n
		}
	}
	if v, ok := os.LookupEnv("GRIDWORLD_POLICY"); ok {
		c.Policy.Type = v
	}
	if v, ok := os.LookupEnv("GRIDWORLD_MODEL"); ok {
		c.Policy.Model = v
	}
	if v, ok := os.LookupEnv("GRIDWORLD_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}

	return result.ErrorOrNil()
}

// Validate checks the experiment-level fields. World geometry is checked by
// WorldConfig.Build.
func (c *ExperimentConfig) Validate() error {
	var result *multierror.Error

	if c.Episodes <= 0 {
		result = multierror.Append(result, fmt.Errorf("episodes must be positive, got %d", c.Episodes))
	}
	if c.MaxSteps <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps))
	}
	if c.Policy.Epsilon < 0 || c.Policy.Epsilon > 1 {
		result = multierror.Append(result, fmt.Errorf("policy epsilon must be within [0, 1], got %g", c.Policy.Epsilon))
	}
	switch c.Policy.Type {
	case PolicyRandom, PolicyShortestPath, PolicyLLM:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown policy type %q", c.Policy.Type))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, err)
	}
	if len(c.World.Actors) == 0 {
		result = multierror.Append(result, fmt.Errorf("world has no actors"))
	}

	return result.ErrorOrNil()
}

func (w WorldConfig) IsTraining() bool {
	return w.Training == nil || *w.Training
}

// Build validates the world and constructs it.
func (w WorldConfig) Build() (*environment.World, error) {
	return environment.SetWorldState(w.IsTraining(), w.Length, w.Width, w.Walls, w.End, w.Actors)
}
