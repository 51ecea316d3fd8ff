package policy

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/boristopalov/gridworld/pkg/agent"
	"github.com/boristopalov/gridworld/pkg/core"
	"github.com/boristopalov/gridworld/pkg/logging"
	"github.com/boristopalov/gridworld/pkg/memory"
	"github.com/boristopalov/gridworld/pkg/providers"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

const (
	SYSTEM_PROMPT = `You are controlling an actor on a rectangular grid. Rows grow downward and columns grow to the right; (0,0) is the top-left cell. Each turn you move exactly one cell UP, DOWN, LEFT or RIGHT. Walls and the grid edge block movement; a blocked move costs you 2 points and leaves you in place. A legal move earns 1 point plus 1 for every cell it brings you closer to the goal, and loses 1 for every cell it takes you away.`

	MOVE_PROMPT_TEMPLATE = `%s

The grid has %d rows and %d columns.
The goal is at %s.
Walls are at: %s.
You are actor %d and you are at %s.

%s

Very briefly think step by step about which move brings you closer to the goal without hitting a wall, then give your answer after the string "ANSWER" like so: ANSWER: RIGHT`

	historyWindow = 5
)

var logger = logging.New("POLICY", logging.ColorPolicy, os.Stderr)

var answerPattern = regexp.MustCompile(`(?i)ANSWER:\s*\**\s*(UP|DOWN|LEFT|RIGHT)\b`)

// LLM asks a hosted language model for each move. Answers it cannot parse
// are replaced by the fallback policy.
type LLM struct {
	id       string
	model    string
	client   providers.Client
	memory   *memory.Memory
	fallback Policy
}

type LLMParams struct {
	PolicyID       string
	Model          string
	Client         providers.Client
	MemoryCapacity int
	Fallback       Policy
}

type LLMOption func(*LLMParams)

func WithPolicyID(id string) LLMOption {
	return func(p *LLMParams) {
		p.PolicyID = id
	}
}

func WithModel(model string) LLMOption {
	return func(p *LLMParams) {
		p.Model = model
	}
}

func WithClient(c providers.Client) LLMOption {
	return func(p *LLMParams) {
		p.Client = c
	}
}

func WithMemoryCapacity(n int) LLMOption {
	return func(p *LLMParams) {
		p.MemoryCapacity = n
	}
}

func WithFallback(f Policy) LLMOption {
	return func(p *LLMParams) {
		p.Fallback = f
	}
}

func defaultLLMParams() *LLMParams {
	return &LLMParams{
		PolicyID:       "llm-" + uuid.New().String(),
		Model:          "gpt-4o-mini",
		MemoryCapacity: 100,
	}
}

// NewLLM creates an LLM policy. A client is required.
func NewLLM(opts ...LLMOption) (*LLM, error) {
	params := defaultLLMParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Client == nil {
		return nil, fmt.Errorf("llm policy %s: no provider client", params.PolicyID)
	}
	if params.Fallback == nil {
		params.Fallback = NewShortestPath(1)
	}

	return &LLM{
		id:       params.PolicyID,
		model:    params.Model,
		client:   params.Client,
		memory:   memory.NewMemory(params.MemoryCapacity),
		fallback: params.Fallback,
	}, nil
}

func (p *LLM) Name() string {
	return "llm:" + p.model
}

func (p *LLM) GetID() string {
	return p.id
}

func (p *LLM) GetMemory() *memory.Memory {
	return p.memory
}

func (p *LLM) Act(ctx context.Context, obs core.Observation, actor int) (mat.Matrix, error) {
	at, err := actorPosition(obs, actor)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(MOVE_PROMPT_TEMPLATE,
		SYSTEM_PROMPT,
		obs.Length,
		obs.Width,
		obs.Goal,
		formatCells(obs.Walls),
		actor,
		at,
		p.history(),
	)

	response, err := p.client.Complete(ctx, p.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("policy %s: failed to generate response: %w", p.id, err)
	}

	move, err := parseMoveResponse(response)
	if err != nil {
		logger.Warnf("policy %s: %v, using %s", p.id, err, p.fallback.Name())
		return p.fallback.Act(ctx, obs, actor)
	}
	return move.Action(), nil
}

// Record remembers the outcome of a step so the next prompt can mention it.
func (p *LLM) Record(actor int, action mat.Matrix, tr core.Transition) {
	move, err := agent.DecodeAction(action)
	if err != nil {
		return
	}
	outcome := "moved to"
	if !tr.Valid {
		outcome = "was blocked and stayed at"
	}
	p.memory.Store(fmt.Sprintf("Actor %d chose %s, %s %s and earned %.1f points.", actor, move, outcome, tr.Position, tr.Reward))
}

func (p *LLM) history() string {
	recent := p.memory.Last(historyWindow)
	if len(recent) == 0 {
		return "This is your first move."
	}
	return "Your most recent moves:\n" + strings.Join(recent, "\n")
}

func parseMoveResponse(response string) (core.Move, error) {
	matches := answerPattern.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("could not find answer in response: %q", response)
	}
	// the last answer wins when the model restates itself
	move, ok := core.ParseMove(matches[len(matches)-1][1])
	if !ok {
		return 0, fmt.Errorf("could not parse move %q", matches[len(matches)-1][1])
	}
	return move, nil
}

func formatCells(cells []core.Position) string {
	if len(cells) == 0 {
		return "none"
	}
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
