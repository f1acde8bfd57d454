// Package display renders conversation progress on a terminal.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/petasbytes/tool-runner/conversation"
)

// ColorEnabled reports whether f is a terminal that should get colors.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes assistant text, tool calls and tool results. It is meant to
// be wired to the runner's observer hooks.
type Printer struct {
	out       io.Writer
	streaming bool
	color     bool
	tags      *TagWriter
	md        *glamour.TermRenderer

	tool    lipgloss.Style
	muted   lipgloss.Style
	you     lipgloss.Style
	tagStys map[string]lipgloss.Style
}

func NewPrinter(out io.Writer, color, streaming bool) *Printer {
	r := lipgloss.NewRenderer(out)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	p := &Printer{
		out:       out,
		streaming: streaming,
		color:     color,
		tool:      r.NewStyle().Foreground(lipgloss.Color("4")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		you:       r.NewStyle().Foreground(lipgloss.Color("12")),
		tagStys: map[string]lipgloss.Style{
			"thinking": r.NewStyle().Foreground(lipgloss.Color("4")),
			"info":     r.NewStyle().Foreground(lipgloss.Color("2")),
			"warning":  r.NewStyle().Foreground(lipgloss.Color("3")),
			"error":    r.NewStyle().Foreground(lipgloss.Color("1")),
		},
	}
	p.tags = NewTagWriter(out, p.tagStyle)
	return p
}

// tagStyle styles unknown tags like <thinking>; <result> stays plain.
func (p *Printer) tagStyle(tag string) (lipgloss.Style, bool) {
	if tag == "result" {
		return lipgloss.Style{}, false
	}
	if s, ok := p.tagStys[tag]; ok {
		return s, true
	}
	return p.tagStys["thinking"], true
}

// Text prints a streamed delta.
func (p *Printer) Text(delta string) {
	_ = p.tags.WriteString(delta)
}

// EnableMarkdown renders the text of completed assistant turns as
// markdown, wrapped at width. Streamed text is printed as it arrives and is
// not affected.
func (p *Printer) EnableMarkdown(width int) error {
	style := "notty"
	if p.color {
		style = "dark"
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}
	p.md = md
	return nil
}

// Assistant prints a completed assistant turn. Text already streamed
// through Text is not repeated.
func (p *Printer) Assistant(turn conversation.Turn) {
	for _, b := range turn.Content {
		switch v := b.(type) {
		case conversation.Text:
			if p.streaming {
				continue
			}
			if p.md != nil {
				if rendered, err := p.md.Render(v.Text); err == nil {
					p.endText()
					fmt.Fprint(p.out, rendered)
					continue
				}
			}
			_ = p.tags.WriteString(v.Text)
		case conversation.ToolUse:
			p.endText()
			input := string(v.Input)
			var compact any
			if json.Unmarshal(v.Input, &compact) == nil {
				if b, err := json.Marshal(compact); err == nil {
					input = string(b)
				}
			}
			fmt.Fprintln(p.out, p.tool.Render("[tool_use]"), v.Name, input)
		case conversation.ToolResult:
			p.endText()
			fmt.Fprintln(p.out, p.muted.Render("[tool_result] "+truncate(v.String(), 30)))
		default:
			p.endText()
			fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf("[%T] ...", b)))
		}
	}
	p.endText()
}

// User prints the tool results and input of a user turn, shortened.
func (p *Printer) User(turn conversation.Turn) {
	p.endText()
	for _, b := range turn.Content {
		switch v := b.(type) {
		case conversation.ToolResult:
			line := "[tool_result] " + truncate(v.String(), 30)
			if v.IsError {
				line = "[tool_error] " + truncate(v.String(), 30)
			}
			fmt.Fprintln(p.out, p.muted.Render(line))
		case conversation.Text:
			fmt.Fprintln(p.out, p.muted.Render(truncate(v.Text, 30)))
		default:
			fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf("[%T] ...", b)))
		}
	}
}

// Info prints a muted status line such as the session id.
func (p *Printer) Info(format string, args ...any) {
	p.endText()
	fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf(format, args...)))
}

// Prompt writes the interactive input prompt without a newline.
func (p *Printer) Prompt() {
	p.endText()
	fmt.Fprint(p.out, p.you.Render("You")+": ")
}

// endText flushes buffered text and terminates the line if text was written.
func (p *Printer) endText() {
	if p.tags.wrote {
		_ = p.tags.Flush()
		fmt.Fprintln(p.out)
		p.tags.wrote = false
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
