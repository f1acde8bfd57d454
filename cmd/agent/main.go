package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/petasbytes/tool-runner/internal/config"
	"github.com/petasbytes/tool-runner/internal/provider"
	"github.com/petasbytes/tool-runner/internal/runner"
)

var rootCmd = &cobra.Command{
	Use:           "agent",
	Short:         "agent runs tool-calling conversations with Claude",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags are parsed now, so --log-level and co apply
		initLogger()
	},
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initLogger() {
	err := InitLogger(&logConfig{
		Level:      viper.GetString("log-level"),
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

func InitLogger(cfg *logConfig) error {
	if cfg.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	// default is json
	var logWriter io.Writer
	if cfg.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		logWriter = os.Stderr
	}

	if cfg.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   cfg.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}
	log.Logger = log.Output(logWriter)

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.Bool("with-caller", false, "Log caller")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error, fatal)")
	pf.String("log-format", "text", "Log format (json, text)")
	pf.String("log-file", "", "Log file (default: stderr)")
	pf.String("config", "", "Path to config file (default ./config.yaml or ~/.agent/config.yaml)")

	pf.String("model", string(provider.DefaultModel), "Model to use")
	pf.Int64("max-tokens", 4096, "Maximum tokens per completion")
	pf.Bool("stream", true, "Stream assistant text as it arrives")
	pf.String("tools-root", "", "Directory holding the tools roots (default ~/tools)")
	pf.String("read-root", "", "Sandbox root for the file reading tools (default working directory)")
	pf.String("write-root", "", "Sandbox root for the file editing tool (default read root)")
	pf.Int("token-budget", 0, "Estimated token budget per request, 0 sends everything")
	pf.Bool("markdown", false, "Render non-streamed replies as markdown")
	pf.String("token-counter", "heuristic", "Token estimator for --token-budget: heuristic or tiktoken")
	pf.Int("parallel-tools", runner.DefaultMaxParallelTools, "Tool calls run concurrently per round")
	pf.Int("max-rounds", runner.DefaultMaxRounds, "Rounds allowed per ask")
	pf.String("unknown-tool", "fatal", "What to do when the model calls an unknown tool (fatal, error)")

	// --config has to be known before the commands are parsed
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		} else if v, ok := strings.CutPrefix(arg, "--config="); ok {
			configFile = v
		}
	}
	if err := config.Init(viper.GetViper(), configFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cobra.CheckErr(viper.BindPFlags(pf))
	initLogger()

	rootCmd.AddCommand(createCmd, clearCmd, askCmd, chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
