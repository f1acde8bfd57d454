package main

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

var errEmptyMessage = errors.New("empty message")

// readMessage joins args when present. Otherwise it reads stdin, or opens
// $EDITOR when edit is set or stdin is a terminal.
func readMessage(args []string, stdin *os.File, edit bool) (string, error) {
	var msg string
	switch {
	case len(args) > 0 && !edit:
		msg = strings.Join(args, " ")
	case !edit && !isatty.IsTerminal(stdin.Fd()):
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read stdin")
		}
		msg = string(b)
	default:
		var err error
		msg, err = editMessage(strings.Join(args, " "))
		if err != nil {
			return "", err
		}
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", errEmptyMessage
	}
	return msg, nil
}

func editMessage(initial string) (string, error) {
	f, err := os.CreateTemp("", "agent-message-*.md")
	if err != nil {
		return "", errors.Wrap(err, "create message file")
	}
	path := f.Name()
	defer os.Remove(path)
	_, err = f.WriteString(initial)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Wrap(err, "write message file")
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	fields := strings.Fields(editor)
	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "run editor %s", editor)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read message file")
	}
	return string(b), nil
}

// askMessages returns the messages an ask sends in order. In summary mode a
// message given on the command line is asked first, then the summary
// request.
func askMessages(args []string, stdin *os.File, edit, summary bool) ([]string, error) {
	if !summary {
		msg, err := readMessage(args, stdin, edit)
		if err != nil {
			return nil, err
		}
		return []string{msg}, nil
	}
	var msgs []string
	if len(args) > 0 || edit {
		msg, err := readMessage(args, stdin, edit)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return append(msgs, summaryPrompt), nil
}
