package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/tool-runner/conversation"
	"github.com/petasbytes/tool-runner/internal/telemetry"
)

const DefaultModel = anthropic.ModelClaudeSonnet4_5

// Anthropic implements Client over the Messages API.
type Anthropic struct {
	client anthropic.Client
}

var _ Client = (*Anthropic)(nil)

// NewAnthropic builds a client. The API key is read from ANTHROPIC_API_KEY
// unless an option overrides it. SDK retries are always disabled.
func NewAnthropic(opts ...option.RequestOption) *Anthropic {
	opts = append(opts, option.WithMaxRetries(0))
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

func (a *Anthropic) Send(ctx context.Context, req Request) (*Response, error) {
	params := buildParams(req)
	telemetry.PersistPayload(ctx, "request", params)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transportError("send", err)
	}
	telemetry.PersistPayload(ctx, "response", msg)
	return fromMessage(msg), nil
}

func (a *Anthropic) Stream(ctx context.Context, req Request, onText func(string)) (*Response, error) {
	params := buildParams(req)
	telemetry.PersistPayload(ctx, "request", params)

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var acc anthropic.Message
	for stream.Next() {
		if ctx.Err() != nil {
			break
		}
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, &TransportError{Op: "stream", Err: errors.Wrap(err, "accumulate")}
		}
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok || onText == nil {
			continue
		}
		if td, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
			onText(td.Text)
		}
	}

	if err := ctx.Err(); err != nil {
		return partialText(&acc), err
	}
	if err := stream.Err(); err != nil {
		return nil, transportError("stream", err)
	}
	if acc.StopReason == "" {
		return nil, &TransportError{Op: "stream", Err: errors.New("stream ended without a stop reason")}
	}
	telemetry.PersistPayload(ctx, "response", &acc)
	return fromMessage(&acc), nil
}

func transportError(op string, err error) *TransportError {
	te := &TransportError{Op: op, Err: err}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		te.StatusCode = apiErr.StatusCode
	}
	return te
}

func buildParams(req Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = string(DefaultModel)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toMessageParams(req.Turns),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolParams(req.Tools)
	}
	if req.ToolChoice != "" {
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(req.ToolChoice)
	}
	return params
}

func toToolParams(specs []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		schema := anthropic.ToolInputSchemaParam{Required: s.InputSchema.Required}
		if len(s.InputSchema.Properties) > 0 {
			schema.Properties = s.InputSchema.Properties
		}
		tp := &anthropic.ToolParam{Name: s.Name, InputSchema: schema}
		if s.Description != "" {
			tp.Description = anthropic.String(s.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tp})
	}
	return out
}

func toMessageParams(turns []conversation.Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for i, t := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.Content))
		for _, b := range t.Content {
			switch v := b.(type) {
			case conversation.Text:
				text := v.Text
				// A trailing assistant turn is a prefill the model continues from,
				// and the API rejects trailing whitespace there.
				if i == len(turns)-1 && t.Role == conversation.RoleAssistant {
					text = strings.TrimRight(text, " \t\r\n")
				}
				if text == "" {
					continue
				}
				blocks = append(blocks, anthropic.NewTextBlock(text))
			case conversation.ToolUse:
				input := v.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(v.ID, input, v.Name))
			case conversation.ToolResult:
				content := make([]anthropic.ToolResultBlockParamContentUnion, 0, len(v.Content))
				for _, c := range v.Content {
					if c.Text == "" {
						continue
					}
					content = append(content, anthropic.ToolResultBlockParamContentUnion{OfText: &anthropic.TextBlockParam{Text: c.Text}})
				}
				tr := anthropic.ToolResultBlockParam{ToolUseID: v.ToolUseID, Content: content}
				if v.IsError {
					tr.IsError = anthropic.Bool(true)
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolResult: &tr})
			default:
				log.Warn().Str("type", fmt.Sprintf("%T", b)).Msg("provider: skipping unknown block")
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if t.Role == conversation.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func fromMessage(msg *anthropic.Message) *Response {
	resp := &Response{
		StopReason: conversation.ParseStopReason(string(msg.StopReason)),
		Usage:      Usage{InputTokens: msg.Usage.InputTokens, OutputTokens: msg.Usage.OutputTokens},
		Content:    make([]conversation.Block, 0, len(msg.Content)),
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content = append(resp.Content, conversation.Text{Text: block.Text})
		case "tool_use":
			input := append(json.RawMessage(nil), block.Input...)
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			resp.Content = append(resp.Content, conversation.ToolUse{ID: block.ID, Name: block.Name, Input: input})
		default:
			log.Debug().Str("type", block.Type).Msg("provider: dropping unsupported content block")
		}
	}
	return resp
}

// partialText keeps only the text received before an abort. Tool calls are
// dropped because their input may be incomplete.
func partialText(msg *anthropic.Message) *Response {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	resp := &Response{StopReason: conversation.StopUnknown}
	if sb.Len() > 0 {
		resp.Content = []conversation.Block{conversation.Text{Text: sb.String()}}
	}
	return resp
}
