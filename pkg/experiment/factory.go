package experiment

import (
	"context"
	"fmt"

	"github.com/boristopalov/gridworld/pkg/config"
	"github.com/boristopalov/gridworld/pkg/logging"
	"github.com/boristopalov/gridworld/pkg/messaging"
	"github.com/boristopalov/gridworld/pkg/policy"
	"github.com/boristopalov/gridworld/pkg/providers"
)

// NewPolicy builds the policy named by cfg. The LLM policy connects to its
// provider here and falls back to the shortest path.
func NewPolicy(ctx context.Context, cfg config.PolicyConfig, seed int64) (policy.Policy, error) {
	switch cfg.Type {
	case config.PolicyRandom:
		return policy.NewRandom(seed), nil
	case config.PolicyShortestPath:
		return policy.NewShortestPath(seed), nil
	case config.PolicyLLM:
		client, err := providers.New(ctx, cfg.Provider)
		if err != nil {
			return nil, err
		}
		model := cfg.Model
		if model == "" {
			model = providers.DefaultModel(cfg.Provider)
		}
		llm, err := policy.NewLLM(
			policy.WithClient(client),
			policy.WithModel(model),
			policy.WithMemoryCapacity(cfg.MemoryCapacity),
			policy.WithFallback(policy.NewShortestPath(seed)),
		)
		if err != nil {
			return nil, err
		}
		return llm, nil
	}
	return nil, fmt.Errorf("unknown policy type %q", cfg.Type)
}

// FromConfig validates cfg, builds its world and policy and returns the
// experiment ready to run.
func FromConfig(ctx context.Context, cfg *config.ExperimentConfig, broker messaging.Broker, logger *logging.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	world, err := cfg.World.Build()
	if err != nil {
		return nil, err
	}
	pol, err := NewPolicy(ctx, cfg.Policy, cfg.Seed)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithName(cfg.Name),
		WithEpisodes(cfg.Episodes),
		WithMaxSteps(cfg.MaxSteps),
		WithExploration(cfg.Policy.Epsilon, cfg.Seed),
		WithStatsFile(cfg.Output.StatsCSV),
		WithChartFile(cfg.Output.Chart),
	}
	if broker != nil {
		opts = append(opts, WithBroker(broker))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return NewExperiment(world, pol, opts...)
}
