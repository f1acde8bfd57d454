package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tool-runner/conversation"
	"github.com/petasbytes/tool-runner/internal/provider"
	"github.com/petasbytes/tool-runner/internal/runner"
	"github.com/petasbytes/tool-runner/tools"
)

type roundFunc func(ctx context.Context, req provider.Request, onText func(string)) (*provider.Response, error)

// scripted is a provider.Client that answers each round with the next
// scripted function and records the requests it saw.
type scripted struct {
	mu       sync.Mutex
	rounds   []roundFunc
	requests []provider.Request
}

func script(rounds ...roundFunc) *scripted { return &scripted{rounds: rounds} }

func (s *scripted) next(ctx context.Context, req provider.Request, onText func(string)) (*provider.Response, error) {
	s.mu.Lock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if i >= len(s.rounds) {
		return nil, errors.New("scripted: no more rounds")
	}
	return s.rounds[i](ctx, req, onText)
}

func (s *scripted) Send(ctx context.Context, req provider.Request) (*provider.Response, error) {
	return s.next(ctx, req, nil)
}

func (s *scripted) Stream(ctx context.Context, req provider.Request, onText func(string)) (*provider.Response, error) {
	return s.next(ctx, req, onText)
}

func (s *scripted) Requests() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Request(nil), s.requests...)
}

func reply(stop conversation.StopReason, blocks ...conversation.Block) roundFunc {
	return func(context.Context, provider.Request, func(string)) (*provider.Response, error) {
		return &provider.Response{Content: blocks, StopReason: stop}, nil
	}
}

func text(s string) conversation.Text { return conversation.Text{Text: s} }

func use(id, name, input string) conversation.ToolUse {
	return conversation.ToolUse{ID: id, Name: name, Input: json.RawMessage(input)}
}

type echoInput struct {
	Text    string `json:"text"`
	DelayMS int    `json:"delay_ms,omitempty"`
	Fail    bool   `json:"fail,omitempty"`
}

// echoTool returns its text, optionally after a delay or as an error.
func echoTool(calls *atomic.Int32) tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "echo",
		Description: "echo text back",
		InputSchema: tools.GenerateSchema[echoInput](),
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			if calls != nil {
				calls.Add(1)
			}
			var in echoInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			if in.DelayMS > 0 {
				time.Sleep(time.Duration(in.DelayMS) * time.Millisecond)
			}
			if in.Fail {
				return "", errors.New("echo failed: " + in.Text)
			}
			return in.Text, nil
		},
	}
}

func newRunner(t *testing.T, client provider.Client, cfg runner.Config, defs ...tools.ToolDefinition) *runner.Runner {
	t.Helper()
	reg, err := tools.NewRegistry(defs...)
	require.NoError(t, err)
	return runner.New(client, reg, cfg)
}

func TestAsk_SingleRoundEndTurn(t *testing.T) {
	s := script(reply(conversation.StopEndTurn, text("hi there")))
	r := newRunner(t, s, runner.Config{})

	require.NoError(t, r.AskText(context.Background(), "hello", ""))

	assert.Len(t, s.Requests(), 1)
	assert.True(t, r.IsEndTurn())
	assert.Equal(t, runner.Done, r.State())
	assert.Equal(t, []conversation.Turn{
		conversation.UserText("hello"),
		conversation.AssistantText("hi there"),
	}, r.Messages())

	final, ok := r.FinalMessage()
	require.True(t, ok)
	assert.Equal(t, "hi there", final.TextContent())
}

func TestAsk_MaxTokensContinuationMerges(t *testing.T) {
	s := script(
		reply(conversation.StopMaxTokens, text("Hello, ")),
		reply(conversation.StopEndTurn, text(" world")),
	)
	r := newRunner(t, s, runner.Config{})

	require.NoError(t, r.AskText(context.Background(), "greet", ""))

	reqs := s.Requests()
	require.Len(t, reqs, 2)
	// The continuation request ends with the partial assistant turn, trimmed
	// the way the prefill is sent.
	lastSent := reqs[1].Turns[len(reqs[1].Turns)-1]
	assert.Equal(t, conversation.AssistantText("Hello,"), lastSent)

	assert.Equal(t, []conversation.Turn{
		conversation.UserText("greet"),
		conversation.AssistantText("Hello, world"),
	}, r.Messages())
}

func TestAsk_MergeKeepsTrailingToolUse(t *testing.T) {
	var calls atomic.Int32
	s := script(
		reply(conversation.StopMaxTokens, text("Let me")),
		reply(conversation.StopToolUse, text(" check."), use("u1", "echo", `{"text":"x"}`)),
		reply(conversation.StopEndTurn, text("done")),
	)
	r := newRunner(t, s, runner.Config{}, echoTool(&calls))

	require.NoError(t, r.AskText(context.Background(), "go", ""))

	msgs := r.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, conversation.Turn{Role: conversation.RoleAssistant, Content: []conversation.Block{
		text("Let me check."),
		use("u1", "echo", `{"text":"x"}`),
	}}, msgs[1])
	assert.Equal(t, conversation.Turn{Role: conversation.RoleUser, Content: []conversation.Block{
		conversation.NewToolResult("u1", "x", false),
	}}, msgs[2])
	assert.Equal(t, conversation.AssistantText("done"), msgs[3])
	assert.Equal(t, int32(1), calls.Load())
}

func TestAsk_LeadingToolUseIsNotMerged(t *testing.T) {
	s := script(
		reply(conversation.StopMaxTokens, text("thinking")),
		reply(conversation.StopToolUse, use("u1", "echo", `{"text":"x"}`)),
		reply(conversation.StopEndTurn, text("ok")),
	)
	r := newRunner(t, s, runner.Config{}, echoTool(nil))

	require.NoError(t, r.AskText(context.Background(), "go", ""))

	msgs := r.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, conversation.AssistantText("thinking"), msgs[1])
	assert.Equal(t, conversation.RoleAssistant, msgs[2].Role)
	assert.Len(t, msgs[2].ToolUses(), 1)
	assert.True(t, msgs[3].HasToolResults())
}

func TestDispatch_ResultsFollowRequestOrder(t *testing.T) {
	s := script(
		reply(conversation.StopToolUse,
			use("slow", "echo", `{"text":"first","delay_ms":80}`),
			use("fast", "echo", `{"text":"second"}`),
			use("mid", "echo", `{"text":"third","delay_ms":20}`),
		),
		reply(conversation.StopEndTurn, text("done")),
	)
	r := newRunner(t, s, runner.Config{MaxParallelTools: 3}, echoTool(nil))

	require.NoError(t, r.AskText(context.Background(), "go", ""))

	msgs := r.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, []conversation.Block{
		conversation.NewToolResult("slow", "first", false),
		conversation.NewToolResult("fast", "second", false),
		conversation.NewToolResult("mid", "third", false),
	}, msgs[2].Content)
}

func TestDispatch_HandlerErrorIsIsolated(t *testing.T) {
	s := script(
		reply(conversation.StopToolUse,
			use("a", "echo", `{"text":"bad","fail":true}`),
			use("b", "echo", `{"text":"good"}`),
			use("c", "echo", `{"wrong":1}`),
		),
		reply(conversation.StopEndTurn, text("recovered")),
	)
	r := newRunner(t, s, runner.Config{}, echoTool(nil))

	require.NoError(t, r.AskText(context.Background(), "go", ""))

	results := r.Messages()[2].Content
	require.Len(t, results, 3)

	a := results[0].(conversation.ToolResult)
	assert.True(t, a.IsError)
	assert.Equal(t, "echo failed: bad", a.String())

	assert.Equal(t, conversation.NewToolResult("b", "good", false), results[1])

	c := results[2].(conversation.ToolResult)
	assert.True(t, c.IsError)
	assert.Contains(t, c.String(), "invalid input")

	assert.Len(t, s.Requests(), 2)
}

func TestAsk_ForcedToolStopsAfterSubmit(t *testing.T) {
	var calls atomic.Int32
	s := script(
		reply(conversation.StopToolUse, use("f1", "echo", `{"text":"forced"}`)),
		reply(conversation.StopEndTurn, text("after")),
	)
	r := newRunner(t, s, runner.Config{}, echoTool(&calls))

	require.NoError(t, r.AskText(context.Background(), "use echo", "echo"))

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "echo", reqs[0].ToolChoice)
	assert.Equal(t, int32(1), calls.Load())

	last, ok := r.Log().Last()
	require.True(t, ok)
	assert.True(t, last.HasToolResults())

	// The next ask is not forced and its text joins the pending results turn.
	require.NoError(t, r.AskText(context.Background(), "continue", ""))
	reqs = s.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[1].ToolChoice)

	msgs := r.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, []conversation.Block{
		conversation.NewToolResult("f1", "forced", false),
		text("continue"),
	}, msgs[2].Content)
}

func TestAsk_ForcedToolOnlyOnFirstRound(t *testing.T) {
	s := script(
		reply(conversation.StopMaxTokens, text("partial")),
		reply(conversation.StopEndTurn, text(" rest")),
	)
	r := newRunner(t, s, runner.Config{}, echoTool(nil))

	require.NoError(t, r.AskText(context.Background(), "go", "echo"))

	reqs := s.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "echo", reqs[0].ToolChoice)
	assert.Empty(t, reqs[1].ToolChoice)
}

func TestDispatch_UnknownToolIsFatalByDefault(t *testing.T) {
	var calls atomic.Int32
	s := script(
		reply(conversation.StopToolUse,
			use("k", "echo", `{"text":"known"}`),
			use("u", "nope", `{}`),
		),
	)
	r := newRunner(t, s, runner.Config{}, echoTool(&calls))

	err := r.AskText(context.Background(), "go", "")

	var unknown *runner.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
	assert.Equal(t, "u", unknown.ToolUseID)
	assert.Equal(t, int32(0), calls.Load())

	last, _ := r.Log().Last()
	assert.Equal(t, conversation.RoleAssistant, last.Role, "no results are appended")
}

func TestDispatch_UnknownToolAsErrorResult(t *testing.T) {
	s := script(
		reply(conversation.StopToolUse, use("u", "nope", `{}`)),
		reply(conversation.StopEndTurn, text("sorry")),
	)
	r := newRunner(t, s, runner.Config{UnknownTool: runner.UnknownToolAsError})

	require.NoError(t, r.AskText(context.Background(), "go", ""))

	res := r.Messages()[2].Content[0].(conversation.ToolResult)
	assert.True(t, res.IsError)
	assert.Equal(t, "tool not found: nope", res.String())
}

func TestDispatch_UnknownToolSuggestsCloseName(t *testing.T) {
	s := script(
		reply(conversation.StopToolUse, use("u", "eho", `{}`), use("k", "echo", `{"text":"ok"}`)),
		reply(conversation.StopEndTurn, text("done")),
	)
	r := newRunner(t, s, runner.Config{UnknownTool: runner.UnknownToolAsError}, echoTool(nil))

	require.NoError(t, r.AskText(context.Background(), "go", ""))

	results := r.Messages()[2].Content
	require.Len(t, results, 2)
	assert.Equal(t, "tool not found: eho (did you mean echo?)", results[0].(conversation.ToolResult).String())
	assert.Equal(t, "ok", results[1].(conversation.ToolResult).String())

	s = script(reply(conversation.StopToolUse, use("u", "ech", `{}`)))
	r = newRunner(t, s, runner.Config{}, echoTool(nil))
	err := r.AskText(context.Background(), "go", "")
	var unknown *runner.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "echo", unknown.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "echo"?`)
}

func TestAsk_MaxRoundsCap(t *testing.T) {
	loop := reply(conversation.StopMaxTokens, text("more"))
	s := script(loop, loop, loop, loop)
	r := newRunner(t, s, runner.Config{MaxRounds: 3})

	err := r.AskText(context.Background(), "go", "")
	require.ErrorIs(t, err, runner.ErrMaxRounds)
	assert.Len(t, s.Requests(), 3)
}

func TestAsk_StreamingForwardsDeltas(t *testing.T) {
	s := script(func(_ context.Context, _ provider.Request, onText func(string)) (*provider.Response, error) {
		onText("Hel")
		onText("lo")
		return &provider.Response{Content: []conversation.Block{text("Hello")}, StopReason: conversation.StopEndTurn}, nil
	})
	var deltas []string
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	r := runner.New(s, reg, runner.Config{Stream: true}, runner.WithObserver(runner.Observer{
		OnText: func(d string) { deltas = append(deltas, d) },
	}))

	require.NoError(t, r.AskText(context.Background(), "hi", ""))
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestAbort_FlushesPartialText(t *testing.T) {
	var r *runner.Runner
	s := script(func(ctx context.Context, _ provider.Request, onText func(string)) (*provider.Response, error) {
		onText("partial ")
		r.Abort()
		<-ctx.Done()
		return &provider.Response{Content: []conversation.Block{text("partial ")}, StopReason: conversation.StopUnknown}, ctx.Err()
	})
	r = newRunner(t, s, runner.Config{Stream: true})

	err := r.AskText(context.Background(), "write", "")
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []conversation.Turn{
		conversation.UserText("write"),
		conversation.AssistantText("partial "),
	}, r.Messages())
}

func TestAsk_AfterAbortedDispatchAnswersPendingCalls(t *testing.T) {
	var r *runner.Runner
	s := script(
		reply(conversation.StopToolUse, use("s1", "slow", `{}`), use("s2", "slow", `{}`)),
		reply(conversation.StopEndTurn, text("ok")),
	)
	r = newRunner(t, s, runner.Config{}, tools.ToolDefinition{
		Name:        "slow",
		InputSchema: tools.ObjectSchema(nil),
		Function: func(ctx context.Context, _ json.RawMessage) (string, error) {
			r.Abort()
			<-ctx.Done()
			return "", ctx.Err()
		},
	})

	require.ErrorIs(t, r.AskText(context.Background(), "go", ""), context.Canceled)
	last, _ := r.Log().Last()
	require.Equal(t, conversation.RoleAssistant, last.Role)

	require.NoError(t, r.AskText(context.Background(), "next", ""))

	reqs := s.Requests()
	require.Len(t, reqs, 2)
	sent := reqs[1].Turns
	require.Len(t, sent, 3)
	assert.Equal(t, conversation.Turn{Role: conversation.RoleUser, Content: []conversation.Block{
		conversation.NewToolResult("s1", runner.InterruptedResult, true),
		conversation.NewToolResult("s2", runner.InterruptedResult, true),
		text("next"),
	}}, sent[2])
}

func TestAsk_AfterFatalUnknownToolAnswersPendingCall(t *testing.T) {
	s := script(
		reply(conversation.StopToolUse, use("u", "nope", `{}`)),
		reply(conversation.StopEndTurn, text("ok")),
	)
	r := newRunner(t, s, runner.Config{})

	var unknown *runner.UnknownToolError
	require.ErrorAs(t, r.AskText(context.Background(), "go", ""), &unknown)
	require.NoError(t, r.AskText(context.Background(), "never mind", ""))

	sent := s.Requests()[1].Turns
	require.Len(t, sent, 3)
	assert.True(t, sent[2].HasToolResults())
	assert.Equal(t, "never mind", sent[2].TextContent())
}

func TestRegisterTool_RejectedMidRound(t *testing.T) {
	var r *runner.Runner
	var midErr error
	s := script(
		reply(conversation.StopToolUse, use("t", "register", `{}`)),
		reply(conversation.StopEndTurn, text("ok")),
	)
	r = newRunner(t, s, runner.Config{}, tools.ToolDefinition{
		Name:        "register",
		InputSchema: tools.ObjectSchema(nil),
		Function: func(context.Context, json.RawMessage) (string, error) {
			_, midErr = r.RegisterTool(echoTool(nil))
			return "tried", nil
		},
	})

	require.NoError(t, r.AskText(context.Background(), "go", ""))
	assert.ErrorIs(t, midErr, runner.ErrRoundInProgress)

	name, err := r.RegisterTool(echoTool(nil))
	require.NoError(t, err)
	assert.Equal(t, "echo", name)
}

func TestRun_ResumesPendingToolCalls(t *testing.T) {
	var calls atomic.Int32
	s := script(reply(conversation.StopEndTurn, text("finished")))
	reg, err := tools.NewRegistry(echoTool(&calls))
	require.NoError(t, err)

	log := conversation.NewLog(
		conversation.UserText("go"),
		conversation.Turn{Role: conversation.RoleAssistant, Content: []conversation.Block{use("p", "echo", `{"text":"resumed"}`)}},
	)
	r := runner.New(s, reg, runner.Config{}, runner.WithLog(log))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Turns[len(reqs[0].Turns)-1].HasToolResults())
}

func TestRun_EmptyConversation(t *testing.T) {
	r := newRunner(t, script(), runner.Config{})
	assert.ErrorIs(t, r.Run(context.Background()), runner.ErrEmptyConversation)
}

func TestStep_OneRoundAtATime(t *testing.T) {
	s := script(
		reply(conversation.StopToolUse, use("a", "echo", `{"text":"x"}`)),
		reply(conversation.StopEndTurn, text("done")),
	)
	log := conversation.NewLog(conversation.UserText("go"))
	reg, err := tools.NewRegistry(echoTool(nil))
	require.NoError(t, err)
	r := runner.New(s, reg, runner.Config{}, runner.WithLog(log))

	more, err := r.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 3, len(r.Messages()))

	more, err = r.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, runner.Done, r.State())
}

func TestAsk_StateDuringRequest(t *testing.T) {
	var r *runner.Runner
	var seen runner.State
	s := script(func(context.Context, provider.Request, func(string)) (*provider.Response, error) {
		seen = r.State()
		return &provider.Response{Content: []conversation.Block{text("ok")}, StopReason: conversation.StopEndTurn}, nil
	})
	r = newRunner(t, s, runner.Config{})
	assert.Equal(t, runner.Idle, r.State())

	require.NoError(t, r.AskText(context.Background(), "hi", ""))
	assert.Equal(t, runner.Requesting, seen)
	assert.Equal(t, "done", r.State().String())
}

func TestAsk_TransportErrorIsReturned(t *testing.T) {
	s := script(func(context.Context, provider.Request, func(string)) (*provider.Response, error) {
		return nil, &provider.TransportError{Op: "send", StatusCode: 401, Err: errors.New("unauthorized")}
	})
	r := newRunner(t, s, runner.Config{})

	err := r.AskText(context.Background(), "hi", "")
	var te *provider.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 401, te.StatusCode)
	assert.Len(t, r.Messages(), 1)
}

func TestAsk_RequestCarriesConfigAndTools(t *testing.T) {
	s := script(reply(conversation.StopEndTurn, text("ok")))
	reg, err := tools.NewRegistry(echoTool(nil))
	require.NoError(t, err)
	r := runner.New(s, reg, runner.Config{Model: "m-1", MaxTokens: 99, System: "sys"})

	require.NoError(t, r.AskText(context.Background(), "hi", ""))

	req := s.Requests()[0]
	assert.Equal(t, "m-1", req.Model)
	assert.Equal(t, int64(99), req.MaxTokens)
	assert.Equal(t, "sys", req.System)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "echo", req.Tools[0].Name)
}

func TestAsk_TokenBudgetWindowsRequest(t *testing.T) {
	s := script(reply(conversation.StopEndTurn, text("ok")))
	log := conversation.NewLog(
		conversation.UserText("an old question that is long enough to be dropped"),
		conversation.AssistantText("an old answer that is long enough to be dropped"),
	)
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	r := runner.New(s, reg, runner.Config{TokenBudget: 20}, runner.WithLog(log))

	require.NoError(t, r.AskText(context.Background(), "new", ""))

	req := s.Requests()[0]
	require.Len(t, req.Turns, 1)
	assert.Equal(t, conversation.UserText("new"), req.Turns[0])
	// The log itself keeps everything.
	assert.Len(t, r.Messages(), 4)
}

func TestAsk_NewestGroupOverBudgetFailsWithoutRequest(t *testing.T) {
	s := script()
	r := newRunner(t, s, runner.Config{TokenBudget: 3})

	err := r.AskText(context.Background(), "this will not fit", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds token budget")
	assert.Empty(t, s.Requests())
}
