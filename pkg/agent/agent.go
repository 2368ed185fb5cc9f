// Package agent runs a bounded ReAct loop: the model alternates between
// choosing a tool and reading its observation until it produces a final
// answer or runs out of rounds.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/model"
	"github.com/nstogner/searchchat/pkg/tools"
)

const (
	// DefaultMaxRounds bounds the number of model calls per run.
	DefaultMaxRounds = 15

	// IterationLimitAnswer is returned when MaxRounds is exhausted.
	IterationLimitAnswer = "Agent stopped due to iteration limit or time limit."

	invalidResponseObservation = "Invalid or incomplete response"
	parsingErrorTool           = "_Exception"
)

// Step records one tool call (or rejected completion) and what the model saw.
type Step struct {
	Tool        string `json:"tool"`
	Input       string `json:"input"`
	Observation string `json:"observation"`
	// Err is the tool failure, if any. The loop carries on regardless.
	Err error `json:"-"`
}

// Result is the outcome of a run.
type Result struct {
	Answer string
	Steps  []Step
	Rounds int
	// Incomplete is set when the run stopped at the round limit.
	Incomplete bool
}

// Runner drives a model.Provider through the ReAct protocol.
type Runner struct {
	provider            model.Provider
	model               string
	tools               *tools.Registry
	maxRounds           int
	handleParsingErrors bool
	toolTimeout         time.Duration
	temperature         *float64
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxRounds sets the round limit. Non-positive values are ignored.
func WithMaxRounds(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

// WithHandleParsingErrors controls whether unparseable completions are fed
// back to the model (true, the default) or returned as *ParsingError.
func WithHandleParsingErrors(v bool) Option {
	return func(r *Runner) { r.handleParsingErrors = v }
}

// WithToolTimeout bounds each tool invocation.
func WithToolTimeout(d time.Duration) Option {
	return func(r *Runner) { r.toolTimeout = d }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Runner) { r.temperature = &t }
}

// New creates a Runner using modelName on provider with the given tools.
func New(provider model.Provider, modelName string, registry *tools.Registry, opts ...Option) *Runner {
	r := &Runner{
		provider:            provider,
		model:               modelName,
		tools:               registry,
		maxRounds:           DefaultMaxRounds,
		handleParsingErrors: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run answers input. Tool failures and (by default) malformed completions are
// fed back to the model as observations. Model errors and cancellation end
// the run with an error.
func (r *Runner) Run(ctx context.Context, input string, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	descriptors := r.tools.Descriptors()

	var (
		scratchpad strings.Builder
		steps      []Step
	)
	for round := 1; round <= r.maxRounds; round++ {
		obs.RoundStarted(round)

		text, err := r.complete(ctx, buildPrompt(descriptors, input, scratchpad.String()), obs)
		if err != nil {
			return nil, err
		}

		d, err := parseOutput(text)
		if err != nil {
			var pe *ParsingError
			if !errors.As(err, &pe) || !r.handleParsingErrors {
				return nil, err
			}
			slog.Debug("Agent output not parseable", "round", round, "reason", pe.Reason)
			steps = append(steps, Step{Tool: parsingErrorTool, Input: pe.Reason, Observation: invalidResponseObservation})
			appendStep(&scratchpad, text, invalidResponseObservation)
			continue
		}

		if d.final {
			slog.Debug("Agent finished", "rounds", round, "steps", len(steps))
			return &Result{Answer: d.answer, Steps: steps, Rounds: round}, nil
		}

		step, err := r.invoke(ctx, d.tool, d.input, obs)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		appendStep(&scratchpad, text, step.Observation)
	}

	slog.Warn("Agent stopped due to iteration limit", "maxRounds", r.maxRounds)
	return &Result{
		Answer:     IterationLimitAnswer,
		Steps:      steps,
		Rounds:     r.maxRounds,
		Incomplete: true,
	}, nil
}

func (r *Runner) complete(ctx context.Context, prompt string, obs Observer) (string, error) {
	stream, err := r.provider.Stream(ctx, model.Request{
		Model:       r.model,
		Messages:    []model.Message{{Role: domain.RoleUser, Content: prompt}},
		Stop:        stopSequences,
		Temperature: r.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer stream.Close()

	text, err := model.Collect(stream, obs.Token)
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}
	return text, nil
}

// invoke runs one tool. Only cancellation of ctx is returned as an error;
// everything else becomes the observation.
func (r *Runner) invoke(ctx context.Context, name, input string, obs Observer) (Step, error) {
	step := Step{Tool: name, Input: input}

	tool, ok := r.tools.Get(name)
	if !ok {
		step.Observation = fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(r.tools.Names(), ", "))
		return step, nil
	}

	obs.ToolStarted(name, input)

	toolCtx := ctx
	if r.toolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, r.toolTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := tool.Invoke(toolCtx, input)
	if ctx.Err() != nil {
		return step, fmt.Errorf("running tool %s: %w", name, ctx.Err())
	}
	if err != nil {
		slog.Warn("Tool failed", "tool", name, "error", err)
		step.Err = err
		step.Observation = fmt.Sprintf("%s produced no result: %v", name, err)
	} else {
		step.Observation = tools.Truncate(out, tool.Descriptor().MaxChars)
	}
	slog.Debug("Tool finished", "tool", name, "duration", time.Since(start), "chars", len(step.Observation))

	obs.ToolFinished(name, step.Observation, step.Err)
	return step, nil
}
