// Package experiment runs policies against grid worlds for a number of
// episodes and reports how they did.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/boristopalov/gridworld/pkg/agent"
	"github.com/boristopalov/gridworld/pkg/core"
	"github.com/boristopalov/gridworld/pkg/logging"
	"github.com/boristopalov/gridworld/pkg/messaging"
	"github.com/boristopalov/gridworld/pkg/policy"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// EpisodeResult summarizes one episode.
type EpisodeResult struct {
	Episode int
	Return  float32
	Steps   int  // rounds played; every unfinished actor moves once per round
	Success bool // every actor reached the goal
}

type Status struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
}

type Experiment struct {
	id        string
	name      string
	world     core.Environment
	policy    policy.Policy
	broker    messaging.Broker
	logger    *logging.Logger
	episodes  int
	maxSteps  int
	statsPath string
	chartPath string

	mu      sync.RWMutex
	status  Status
	results []EpisodeResult
}

type Params struct {
	RunID     string
	Name      string
	Episodes  int
	MaxSteps  int
	Epsilon   float64
	Seed      int64
	Broker    messaging.Broker
	Logger    *logging.Logger
	StatsPath string
	ChartPath string
}

type Option func(*Params)

func WithRunID(id string) Option {
	return func(p *Params) {
		p.RunID = id
	}
}

func WithName(name string) Option {
	return func(p *Params) {
		p.Name = name
	}
}

func WithEpisodes(n int) Option {
	return func(p *Params) {
		p.Episodes = n
	}
}

func WithMaxSteps(n int) Option {
	return func(p *Params) {
		p.MaxSteps = n
	}
}

// WithExploration makes the policy take a random action with probability
// epsilon. It only applies to worlds in training mode.
func WithExploration(epsilon float64, seed int64) Option {
	return func(p *Params) {
		p.Epsilon = epsilon
		p.Seed = seed
	}
}

func WithBroker(b messaging.Broker) Option {
	return func(p *Params) {
		p.Broker = b
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(p *Params) {
		p.Logger = l
	}
}

// WithStatsFile writes one CSV row per episode to path.
func WithStatsFile(path string) Option {
	return func(p *Params) {
		p.StatsPath = path
	}
}

// WithChartFile renders the per-episode returns as an HTML line chart.
func WithChartFile(path string) Option {
	return func(p *Params) {
		p.ChartPath = path
	}
}

func defaultParams() *Params {
	return &Params{
		RunID:    uuid.New().String(),
		Name:     "gridworld",
		Episodes: 1,
		MaxSteps: 100,
	}
}

// NewExperiment wires a world and a policy together.
func NewExperiment(world core.Environment, pol policy.Policy, opts ...Option) (*Experiment, error) {
	params := defaultParams()
	for _, opt := range opts {
		opt(params)
	}

	if world == nil {
		return nil, errors.New("experiment needs a world")
	}
	if pol == nil {
		return nil, errors.New("experiment needs a policy")
	}
	if params.Episodes <= 0 || params.MaxSteps <= 0 {
		return nil, fmt.Errorf("episodes (%d) and max steps (%d) must be positive", params.Episodes, params.MaxSteps)
	}
	if params.Logger == nil {
		params.Logger = logging.New("EXPERIMENT", logging.ColorExperiment, os.Stderr)
	}
	if world.Training() && params.Epsilon > 0 {
		pol = policy.NewEpsilonGreedy(pol, params.Epsilon, params.Seed)
	}

	return &Experiment{
		id:        params.RunID,
		name:      params.Name,
		world:     world,
		policy:    pol,
		broker:    params.Broker,
		logger:    params.Logger,
		episodes:  params.Episodes,
		maxSteps:  params.MaxSteps,
		statsPath: params.StatsPath,
		chartPath: params.ChartPath,
	}, nil
}

func (e *Experiment) GetID() string {
	return e.id
}

func (e *Experiment) Policy() policy.Policy {
	return e.policy
}

func (e *Experiment) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Results returns a copy of the finished episodes.
func (e *Experiment) Results() []EpisodeResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	results := make([]EpisodeResult, len(e.results))
	copy(results, e.results)
	return results
}

// Run plays every episode in order. It stops early when ctx is cancelled;
// the episodes finished so far stay in Results.
func (e *Experiment) Run(ctx context.Context) error {
	e.mu.Lock()
	e.status = Status{Running: true, StartTime: time.Now()}
	e.results = nil
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.status.EndTime = time.Now()
		e.mu.Unlock()
	}()

	stats := e.openStatsFile()
	if stats != nil {
		defer stats.Close()
	}

	obs := e.world.Observe()
	e.logger.Infof("run %s: %d episodes of %s on a %dx%d world", e.id, e.episodes, e.policy.Name(), obs.Length, obs.Width)

	for ep := 1; ep <= e.episodes; ep++ {
		result, err := e.runEpisode(ctx, ep)
		if err != nil {
			return fmt.Errorf("episode %d: %w", ep, err)
		}

		e.mu.Lock()
		e.results = append(e.results, result)
		e.mu.Unlock()

		e.logger.Infof("episode %d: return %.1f in %d steps, success=%t", ep, result.Return, result.Steps, result.Success)
		writeStatsRow(stats, result, e.logger)
		e.publish(messaging.EpisodeEvent{
			RunID:   e.id,
			Episode: result.Episode,
			Return:  result.Return,
			Steps:   result.Steps,
			Success: result.Success,
		})
	}

	summary := e.Stats()
	e.logger.Infof("run %s finished: mean return %.2f (std %.2f, min %.1f, max %.1f), success rate %.1f%%",
		e.id, summary.MeanReturn, summary.StdReturn, summary.MinReturn, summary.MaxReturn, summary.SuccessRate*100)

	if e.chartPath != "" {
		if err := writeReturnChart(e.chartPath, e.name, e.Results()); err != nil {
			e.logger.Warnf("failed to write chart: %v", err)
		}
	}

	return nil
}

func (e *Experiment) runEpisode(ctx context.Context, episode int) (EpisodeResult, error) {
	if err := e.world.Start(); err != nil {
		return EpisodeResult{}, err
	}
	defer e.world.Stop()

	e.world.Reset()
	recorder, _ := e.policy.(policy.Recorder)

	actors := len(e.world.Observe().Actors)
	done := make([]bool, actors)
	finished := 0

	result := EpisodeResult{Episode: episode}
	for step := 1; step <= e.maxSteps && finished < actors; step++ {
		if err := ctx.Err(); err != nil {
			return EpisodeResult{}, err
		}
		result.Steps = step

		for i := 0; i < actors; i++ {
			if done[i] {
				continue
			}

			action, err := e.policy.Act(ctx, e.world.Observe(), i)
			if err != nil {
				return EpisodeResult{}, fmt.Errorf("policy %s: %w", e.policy.Name(), err)
			}
			tr, err := e.world.Step(i, action)
			if err != nil {
				return EpisodeResult{}, err
			}
			if recorder != nil {
				recorder.Record(i, action, tr)
			}

			e.publishStep(episode, step, i, action, tr)
			if tr.Done {
				done[i] = true
				finished++
			}
		}
	}

	result.Return = e.world.PerformanceReturn()
	result.Success = finished == actors
	return result, nil
}

func (e *Experiment) publishStep(episode, step, actor int, action mat.Matrix, tr core.Transition) {
	if e.broker == nil {
		return
	}
	move, err := agent.DecodeAction(action)
	if err != nil {
		return
	}
	e.publish(messaging.StepEvent{
		RunID:      e.id,
		Episode:    episode,
		Step:       step,
		Actor:      actor,
		Action:     move.String(),
		Transition: tr,
	})
}

func (e *Experiment) publish(content any) {
	if e.broker == nil {
		return
	}
	err := e.broker.Publish(messaging.Message{
		From:      e.id,
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		e.logger.Warnf("failed to publish: %v", err)
	}
}
