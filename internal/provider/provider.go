// Package provider adapts remote chat-completion services to the
// conversation types used by the runner.
package provider

import (
	"context"
	"fmt"

	"github.com/petasbytes/tool-runner/conversation"
	"github.com/petasbytes/tool-runner/tools"
)

// Client produces one assistant turn for a request. Send blocks for the
// whole response; Stream forwards text deltas to onText as they arrive and
// returns the aggregate once the stream ends.
//
// When ctx is cancelled mid-stream, Stream returns the text received so far
// together with the context error, and onText is not called again.
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request, onText func(delta string)) (*Response, error)
}

// ToolSpec is the part of a tool definition the model sees.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema tools.Schema
}

// ToolSpecs lists the specs of defs in order.
func ToolSpecs(defs []tools.ToolDefinition) []ToolSpec {
	out := make([]ToolSpec, 0, len(defs))
	for _, d := range defs {
		out = append(out, ToolSpec{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return out
}

type Request struct {
	Model     string
	MaxTokens int64
	System    string
	Turns     []conversation.Turn
	Tools     []ToolSpec
	// ToolChoice forces the named tool when non-empty.
	ToolChoice string
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type Response struct {
	Content    []conversation.Block
	StopReason conversation.StopReason
	Usage      Usage
}

// Turn returns the response as an assistant turn.
func (r *Response) Turn() conversation.Turn {
	return conversation.Turn{Role: conversation.RoleAssistant, Content: r.Content}
}

// TransportError reports a failed completion request: network, auth or a
// malformed response. It is never retried by the runner.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Func adapts plain functions to Client. A nil StreamFunc streams by
// calling SendFunc and emitting the text of the result as a single delta.
type Func struct {
	SendFunc   func(ctx context.Context, req Request) (*Response, error)
	StreamFunc func(ctx context.Context, req Request, onText func(string)) (*Response, error)
}

func (f Func) Send(ctx context.Context, req Request) (*Response, error) {
	return f.SendFunc(ctx, req)
}

func (f Func) Stream(ctx context.Context, req Request, onText func(string)) (*Response, error) {
	if f.StreamFunc != nil {
		return f.StreamFunc(ctx, req, onText)
	}
	resp, err := f.SendFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	if onText != nil {
		for _, b := range resp.Content {
			if t, ok := b.(conversation.Text); ok && t.Text != "" {
				onText(t.Text)
			}
		}
	}
	return resp, nil
}
