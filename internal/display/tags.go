package display

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TagWriter writes streamed text, styling <tag>...</tag> spans once the
// closing tag has arrived. Text outside tags is written as soon as it is
// known not to start a tag.
type TagWriter struct {
	out     io.Writer
	styles  func(tag string) (lipgloss.Style, bool)
	pending string
	inTag   bool
	// wrote is set once any text has been accepted since the last reset.
	wrote bool
}

func NewTagWriter(out io.Writer, styles func(tag string) (lipgloss.Style, bool)) *TagWriter {
	return &TagWriter{out: out, styles: styles}
}

func (w *TagWriter) Write(p []byte) (int, error) {
	if err := w.WriteString(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *TagWriter) WriteString(delta string) error {
	if delta != "" {
		w.wrote = true
	}
	w.pending += delta
	for {
		if !w.inTag {
			i := strings.IndexByte(w.pending, '<')
			if i < 0 {
				return w.emit(w.takeAll())
			}
			if err := w.emit(w.take(i)); err != nil {
				return err
			}
			w.inTag = true
		}

		// pending starts with '<'
		if len(w.pending) > 1 && !isTagByte(w.pending[1]) {
			if err := w.literal(); err != nil {
				return err
			}
			continue
		}
		end := strings.IndexByte(w.pending, '>')
		if end < 0 {
			return nil
		}
		name := w.pending[1:end]
		if !validTag(name) {
			if err := w.literal(); err != nil {
				return err
			}
			continue
		}
		closing := "</" + name + ">"
		k := strings.Index(w.pending[end+1:], closing)
		if k < 0 {
			return nil
		}
		span := w.take(end + 1 + k + len(closing))
		w.inTag = false
		if style, ok := w.styles(name); ok {
			span = renderLines(style, span)
		}
		if err := w.emit(span); err != nil {
			return err
		}
	}
}

// Flush writes whatever is still buffered, unstyled.
func (w *TagWriter) Flush() error {
	w.inTag = false
	return w.emit(w.takeAll())
}

// literal writes a '<' that turned out not to open a tag.
func (w *TagWriter) literal() error {
	w.inTag = false
	return w.emit(w.take(1))
}

func (w *TagWriter) take(n int) string {
	s := w.pending[:n]
	w.pending = w.pending[n:]
	return s
}

func (w *TagWriter) takeAll() string {
	s := w.pending
	w.pending = ""
	return s
}

func (w *TagWriter) emit(s string) error {
	if s == "" {
		return nil
	}
	_, err := io.WriteString(w.out, s)
	return err
}

// renderLines styles each line on its own so multi-line spans are not
// padded to a common width.
func renderLines(style lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func isTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

func validTag(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isTagByte(name[i]) {
			return false
		}
	}
	return true
}
