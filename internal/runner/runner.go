package runner

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/tool-runner/conversation"
	"github.com/petasbytes/tool-runner/internal/provider"
	"github.com/petasbytes/tool-runner/internal/telemetry"
	"github.com/petasbytes/tool-runner/internal/windowing"
	"github.com/petasbytes/tool-runner/tools"
)

const (
	DefaultMaxRounds        = 25
	DefaultMaxParallelTools = 4
)

// InterruptedResult answers a tool call that never produced a result when
// new input arrives after it.
const InterruptedResult = "tool call interrupted before it returned a result"

var (
	// ErrRoundInProgress is returned when a round is started, or a tool is
	// registered, while another round is still running.
	ErrRoundInProgress = errors.New("runner: round in progress")
	// ErrMaxRounds is returned when an ask needs more rounds than Config.MaxRounds.
	ErrMaxRounds = errors.New("runner: max rounds exceeded")
	// ErrEmptyConversation is returned by Run and Step when there is nothing to send.
	ErrEmptyConversation = errors.New("runner: empty conversation")
)

// State is the position of the runner in its round loop.
type State int32

const (
	Idle State = iota
	Requesting
	Merging
	Dispatching
	Submitting
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Merging:
		return "merging"
	case Dispatching:
		return "dispatching"
	case Submitting:
		return "submitting"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Config holds per-runner settings. Zero values select defaults.
type Config struct {
	Model     string
	MaxTokens int64
	System    string
	// Stream requests streamed completions and forwards text deltas to
	// Observer.OnText as they arrive.
	Stream bool
	// TokenBudget bounds the estimated size of the turns sent per round.
	// Zero sends the whole conversation.
	TokenBudget int
	// Counter estimates turn sizes for TokenBudget; nil counts runes.
	Counter          windowing.TokenCounter
	MaxParallelTools int
	MaxRounds        int
	UnknownTool      UnknownToolPolicy
}

// Observer receives conversation progress. Hooks run on the runner's
// goroutine and must not call back into the runner.
type Observer struct {
	OnText      func(delta string)
	OnAssistant func(turn conversation.Turn)
	OnUser      func(turn conversation.Turn)
}

type Option func(*Runner)

func WithObserver(o Observer) Option {
	return func(r *Runner) { r.obs = o }
}

// WithLog resumes an existing conversation.
func WithLog(l *conversation.Log) Option {
	return func(r *Runner) { r.log = l }
}

// Runner drives the request, merge, dispatch and submit loop for one
// conversation. One round runs at a time.
type Runner struct {
	client provider.Client
	reg    *tools.Registry
	cfg    Config
	log    *conversation.Log
	obs    Observer

	round sync.Mutex
	state atomic.Int32

	mu       sync.Mutex
	cancel   context.CancelFunc
	lastStop conversation.StopReason
}

func New(client provider.Client, reg *tools.Registry, cfg Config, opts ...Option) *Runner {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = DefaultMaxParallelTools
	}
	if reg == nil {
		reg, _ = tools.NewRegistry()
	}
	r := &Runner{client: client, reg: reg, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = conversation.NewLog()
	}
	return r
}

// RegisterTool adds a tool for subsequent rounds.
func (r *Runner) RegisterTool(def tools.ToolDefinition) (string, error) {
	if !r.round.TryLock() {
		return "", ErrRoundInProgress
	}
	defer r.round.Unlock()
	return r.reg.Register(def)
}

// Ask appends blocks as user input and runs rounds until the model is done.
// A non-empty forcedTool is required on the first round only; when the model
// answers it with tool calls, the results are submitted and the ask stops.
func (r *Runner) Ask(ctx context.Context, forcedTool string, blocks ...conversation.Block) error {
	if !r.round.TryLock() {
		return ErrRoundInProgress
	}
	defer r.round.Unlock()

	if len(blocks) > 0 {
		r.closePendingCalls()
		r.log.AppendUser(blocks...)
		r.notifyUser(conversation.Turn{Role: conversation.RoleUser, Content: blocks})
		telemetry.EmitTurnFeatures(ctx, conversation.Turn{Role: conversation.RoleUser, Content: blocks})
	}
	return r.run(ctx, forcedTool)
}

func (r *Runner) AskText(ctx context.Context, text, forcedTool string) error {
	return r.Ask(ctx, forcedTool, conversation.Text{Text: text})
}

// Run continues the conversation as it stands without adding input.
func (r *Runner) Run(ctx context.Context) error {
	if !r.round.TryLock() {
		return ErrRoundInProgress
	}
	defer r.round.Unlock()
	return r.run(ctx, "")
}

// Step runs exactly one round. more reports whether another round is needed.
func (r *Runner) Step(ctx context.Context) (more bool, err error) {
	if !r.round.TryLock() {
		return false, ErrRoundInProgress
	}
	defer r.round.Unlock()

	ctx = r.withCancel(ctx)
	defer r.clearCancel()

	if r.log.Len() == 0 {
		return false, ErrEmptyConversation
	}
	more, err = r.step(ctx, "", 1)
	if !more || err != nil {
		r.setState(Done)
	}
	return more, err
}

// Abort cancels the in-flight round, if any. Text streamed so far is kept.
func (r *Runner) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) State() State { return State(r.state.Load()) }

// Messages returns a copy of the conversation.
func (r *Runner) Messages() []conversation.Turn { return r.log.Current() }

// Log exposes the underlying conversation, for persistence.
func (r *Runner) Log() *conversation.Log { return r.log }

// FinalMessage returns the most recent assistant turn.
func (r *Runner) FinalMessage() (conversation.Turn, bool) {
	turns := r.log.Current()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleAssistant {
			return turns[i], true
		}
	}
	return conversation.Turn{}, false
}

// IsEndTurn reports whether the last round ended with end_turn.
func (r *Runner) IsEndTurn() bool {
	return r.LastStop() == conversation.StopEndTurn
}

func (r *Runner) LastStop() conversation.StopReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStop
}

func (r *Runner) run(ctx context.Context, forced string) error {
	ctx = r.withCancel(ctx)
	defer r.clearCancel()
	defer r.setState(Done)

	last, ok := r.log.Last()
	if !ok {
		return ErrEmptyConversation
	}
	if last.Role == conversation.RoleAssistant && forced == "" {
		// A resumed conversation may end with unanswered tool calls.
		if uses := last.ToolUses(); len(uses) > 0 {
			if err := r.dispatchAndSubmit(ctx, uses); err != nil {
				return err
			}
		} else if r.LastStop() != conversation.StopMaxTokens {
			return nil
		}
	}

	for n := 1; ; n++ {
		if n > r.cfg.MaxRounds {
			return errors.Wrapf(ErrMaxRounds, "after %d rounds", r.cfg.MaxRounds)
		}
		more, err := r.step(ctx, forced, n)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		forced = ""
	}
}

// step performs one request and whatever dispatch and submission it calls for.
func (r *Runner) step(ctx context.Context, forced string, n int) (bool, error) {
	turnID := telemetry.NewTurnID()
	ctx = telemetry.WithTurnID(ctx, turnID)
	logger := log.With().Str("turn_id", turnID).Int("round", n).Logger()

	r.log.TrimAssistantTail()
	turns, err := r.window(turnID, r.log.Current())
	if err != nil {
		return false, err
	}

	req := provider.Request{
		Model:      r.cfg.Model,
		MaxTokens:  r.cfg.MaxTokens,
		System:     r.cfg.System,
		Turns:      turns,
		ToolChoice: forced,
	}
	// Calibration runs measure plain prompts, so tools are left out.
	if !telemetry.CalibrationModeEnabled() {
		req.Tools = provider.ToolSpecs(r.reg.List())
	}

	r.setState(Requesting)
	logger.Debug().Int("turns", len(turns)).Str("forced_tool", forced).Msg("runner: request")

	var resp *provider.Response
	if r.cfg.Stream {
		resp, err = r.client.Stream(ctx, req, r.obs.OnText)
	} else {
		resp, err = r.client.Send(ctx, req)
	}
	if err != nil {
		if ctx.Err() != nil && resp != nil && len(resp.Content) > 0 {
			r.setState(Merging)
			if mergeErr := r.appendAssistant(resp.Turn()); mergeErr != nil {
				logger.Error().Err(mergeErr).Msg("runner: flush partial text")
			}
		}
		return false, err
	}

	r.setState(Merging)
	r.setLastStop(resp.StopReason)
	if err := r.appendAssistant(resp.Turn()); err != nil {
		return false, err
	}
	telemetry.EmitTurnFeatures(ctx, resp.Turn())
	logger.Debug().
		Str("stop_reason", string(resp.StopReason)).
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("runner: response")

	if uses := resp.Turn().ToolUses(); len(uses) > 0 {
		if err := r.dispatchAndSubmit(ctx, uses); err != nil {
			return false, err
		}
		return forced == "", nil
	}
	return resp.StopReason == conversation.StopMaxTokens, nil
}

// closePendingCalls answers tool calls left without results by an aborted
// dispatch or a fatal unknown tool, so that new user input does not follow
// an unanswered tool_use.
func (r *Runner) closePendingCalls() {
	last, ok := r.log.Last()
	if !ok || last.Role != conversation.RoleAssistant {
		return
	}
	uses := last.ToolUses()
	if len(uses) == 0 {
		return
	}
	blocks := make([]conversation.Block, len(uses))
	for i, use := range uses {
		blocks[i] = conversation.NewToolResult(use.ID, InterruptedResult, true)
	}
	r.log.AppendUser(blocks...)
	log.Debug().Int("calls", len(uses)).Msg("runner: closed unanswered tool calls")
}

func (r *Runner) dispatchAndSubmit(ctx context.Context, uses []conversation.ToolUse) error {
	r.setState(Dispatching)
	results, err := r.dispatch(ctx, uses)
	if err != nil {
		return err
	}

	r.setState(Submitting)
	blocks := make([]conversation.Block, len(results))
	for i, res := range results {
		blocks[i] = res
	}
	r.log.AppendUser(blocks...)
	r.notifyUser(conversation.Turn{Role: conversation.RoleUser, Content: blocks})
	return nil
}

func (r *Runner) window(turnID string, turns []conversation.Turn) ([]conversation.Turn, error) {
	if r.cfg.TokenBudget <= 0 {
		return turns, nil
	}
	counter := r.cfg.Counter
	if counter == nil {
		counter = windowing.HeuristicCounter{}
	}
	window, stats := windowing.PrepareSendWindow(turns, r.cfg.TokenBudget, counter)

	telemetry.Emit("round_prepared", map[string]any{
		"turn_id":            turnID,
		"model":              r.cfg.Model,
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"over_budget_newest": stats.OverBudgetNewest,
	})

	level := zerolog.DebugLevel
	if os.Getenv("AGT_VERBOSE_WINDOW_LOGS") == "1" {
		level = zerolog.InfoLevel
	}
	log.WithLevel(level).
		Str("turn_id", turnID).
		Int("budget", stats.Budget).
		Int("est_total", stats.Total).
		Int("groups_in", stats.IncludedGroups).
		Int("groups_skip", stats.SkippedGroups).
		Bool("newest_over", stats.OverBudgetNewest).
		Msg("runner: window")

	// With tool caps the newest exchange should always fit the budget; if it
	// does not, the budget is misconfigured.
	if stats.OverBudgetNewest {
		return nil, errors.Errorf("windowing: token budget %d does not fit the newest exchange; increase budget or tighten tool caps", r.cfg.TokenBudget)
	}
	return window, nil
}

func (r *Runner) appendAssistant(turn conversation.Turn) error {
	if err := r.log.Append(turn); err != nil {
		return err
	}
	if r.obs.OnAssistant != nil {
		r.obs.OnAssistant(turn)
	}
	return nil
}

func (r *Runner) notifyUser(turn conversation.Turn) {
	if r.obs.OnUser != nil {
		r.obs.OnUser(turn)
	}
}

func (r *Runner) setState(s State) { r.state.Store(int32(s)) }

func (r *Runner) setLastStop(s conversation.StopReason) {
	r.mu.Lock()
	r.lastStop = s
	r.mu.Unlock()
}

func (r *Runner) withCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	return ctx
}

func (r *Runner) clearCancel() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}
