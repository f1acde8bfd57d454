package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petasbytes/tool-runner/conversation"
	"github.com/petasbytes/tool-runner/internal/config"
	"github.com/petasbytes/tool-runner/internal/display"
	"github.com/petasbytes/tool-runner/internal/provider"
	"github.com/petasbytes/tool-runner/internal/runner"
	"github.com/petasbytes/tool-runner/memory"
)

const summaryPrompt = "Summarize our conversation so far. Keep every fact, decision and open task needed to continue the work; drop the rest."

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a tools root with a system prompt, tool manifest and session context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := config.FromViper(viper.GetViper()).ToolsBase()
		if err != nil {
			return err
		}
		root := filepath.Join(base, args[0])
		if err := config.Scaffold(root); err != nil {
			return err
		}
		cmd.Printf("created %s\n", root)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <name>",
	Short: "Clear the history of the current session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		root, _, err := resolveAgent(args[0], dir)
		if err != nil {
			return err
		}
		sess, err := memory.LoadSession(root)
		if err != nil {
			return err
		}
		if sess.ID == "" || sess.ID == "0" {
			cmd.Println("no session to clear")
			return nil
		}
		return memory.SaveConversation(memory.HistoryPath(root, sess.ID), nil)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <name> [message...]",
	Short: "Send one message and run tools until the model is done",
	Long: "Send one message and run tools until the model is done. Without a message " +
		"argument the message is read from stdin, or from $EDITOR when stdin is a terminal.",
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat <name>",
	Short: "Chat interactively; Ctrl-C aborts the current round, Ctrl-D quits",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	for _, c := range []*cobra.Command{clearCmd, askCmd, chatCmd} {
		c.Flags().StringP("dir", "d", "", "Use this directory as tools root instead of <tools-root>/<name>")
	}
	for _, c := range []*cobra.Command{askCmd, chatCmd} {
		c.Flags().BoolP("new", "n", false, "Start a new session")
		c.Flags().String("history", "", "Read and write the conversation at this path instead of the session history")
		c.Flags().StringP("tool-choice", "c", "", "Require this tool on the first round")
	}
	askCmd.Flags().BoolP("summary", "s", false, "Ask for a summary and keep only the summary exchange")
	askCmd.Flags().BoolP("oneshot", "o", false, "Start from an empty conversation and save nothing")
	askCmd.Flags().BoolP("edit", "e", false, "Compose the message in $EDITOR")
}

// resolveAgent finds the tools root and loads its .env into the process.
func resolveAgent(name, dir string) (string, config.Settings, error) {
	settings := config.FromViper(viper.GetViper())
	base, err := settings.ToolsBase()
	if err != nil {
		return "", settings, err
	}
	root, err := config.ResolveRoot(base, name, dir)
	if err != nil {
		return "", settings, err
	}
	if err := config.LoadEnv(root); err != nil {
		return "", settings, err
	}
	// .env may carry AGT_* keys
	return root, config.FromViper(viper.GetViper()), nil
}

type agent struct {
	root    string
	history string
	session memory.Session
	oneshot bool
	runner  *runner.Runner
	printer *display.Printer
	forced  string
}

func openAgent(cmd *cobra.Command, name string, oneshot bool) (*agent, error) {
	dir, _ := cmd.Flags().GetString("dir")
	root, settings, err := resolveAgent(name, dir)
	if err != nil {
		return nil, err
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, errors.New("missing ANTHROPIC_API_KEY; export it or set it in " + config.EnvFile)
	}
	sb, err := settings.Sandbox()
	if err != nil {
		return nil, err
	}

	system, err := config.LoadSystem(root)
	if err != nil {
		return nil, err
	}
	reg, err := config.Registry(root, sb)
	if err != nil {
		return nil, err
	}
	rc, err := settings.RunnerConfig(system)
	if err != nil {
		return nil, err
	}

	a := &agent{root: root, oneshot: oneshot}
	a.forced, _ = cmd.Flags().GetString("tool-choice")
	a.printer = display.NewPrinter(os.Stdout, display.ColorEnabled(os.Stdout), rc.Stream)
	if viper.GetBool("markdown") && !rc.Stream {
		if err := a.printer.EnableMarkdown(100); err != nil {
			return nil, errors.Wrap(err, "markdown renderer")
		}
	}

	var turns []conversation.Turn
	if !oneshot {
		forceNew, _ := cmd.Flags().GetBool("new")
		a.session, err = memory.OpenSession(root, forceNew, time.Now())
		if err != nil {
			return nil, err
		}
		a.history, _ = cmd.Flags().GetString("history")
		if a.history == "" {
			a.history = memory.HistoryPath(root, a.session.ID)
		}
		turns, err = memory.LoadConversation(a.history)
		if err != nil {
			return nil, err
		}
		a.printer.Info("[session]: %s", a.session.ID)
	}

	a.runner = runner.New(provider.NewAnthropic(), reg, rc,
		runner.WithLog(conversation.NewLog(turns...)),
		runner.WithObserver(runner.Observer{
			OnText:      a.printer.Text,
			OnAssistant: a.printer.Assistant,
			OnUser: func(turn conversation.Turn) {
				if turn.HasToolResults() {
					a.printer.User(turn)
				}
			},
		}))
	log.Debug().Str("root", root).Str("history", a.history).Int("turns", len(turns)).Msg("agent ready")
	return a, nil
}

func (a *agent) save() error {
	if a.oneshot {
		return nil
	}
	return memory.SaveConversation(a.history, a.runner.Messages())
}

func runAsk(cmd *cobra.Command, args []string) error {
	oneshot, _ := cmd.Flags().GetBool("oneshot")
	summary, _ := cmd.Flags().GetBool("summary")
	edit, _ := cmd.Flags().GetBool("edit")

	a, err := openAgent(cmd, args[0], oneshot)
	if err != nil {
		return err
	}

	msgs, err := askMessages(args[1:], os.Stdin, edit, summary)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var askErr error
	forced := a.forced
	for _, msg := range msgs {
		if askErr = a.runner.AskText(ctx, msg, forced); askErr != nil {
			break
		}
		forced = ""
	}
	if summary && askErr == nil {
		a.runner.Log().Truncate(2)
	}
	if err := a.save(); err != nil {
		log.Warn().Err(err).Msg("failed to save conversation")
	}
	if errors.Is(askErr, context.Canceled) {
		return nil
	}
	return askErr
}
