// Package config loads settings from flags, AGT_* environment variables and
// an optional config.yaml, and lays out the per-agent tools root.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/petasbytes/tool-runner/internal/fsops"
	"github.com/petasbytes/tool-runner/internal/runner"
	"github.com/petasbytes/tool-runner/internal/windowing"
)

const EnvPrefix = "AGT"

// Settings are the resolved values of the configuration keys.
type Settings struct {
	Model         string
	MaxTokens     int64
	Stream        bool
	TokenBudget   int
	TokenCounter  string
	ParallelTools int
	MaxRounds     int
	UnknownTool   string
	ToolsRoot     string
	ReadRoot      string
	WriteRoot     string
}

// Init prepares v to read configFile, or config.yaml from the working
// directory and $HOME/.agent, then AGT_* environment variables.
// A missing config file is not an error.
func Init(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(EnvPrefix)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.agent")
	}

	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file; flags and env only
	} else if err != nil {
		return errors.Wrap(err, "read config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	log.Debug().Str("config", v.ConfigFileUsed()).Msg("loaded configuration")
	return nil
}

func FromViper(v *viper.Viper) Settings {
	return Settings{
		Model:         v.GetString("model"),
		MaxTokens:     v.GetInt64("max-tokens"),
		Stream:        v.GetBool("stream"),
		TokenBudget:   v.GetInt("token-budget"),
		TokenCounter:  v.GetString("token-counter"),
		ParallelTools: v.GetInt("parallel-tools"),
		MaxRounds:     v.GetInt("max-rounds"),
		UnknownTool:   v.GetString("unknown-tool"),
		ToolsRoot:     v.GetString("tools-root"),
		ReadRoot:      v.GetString("read-root"),
		WriteRoot:     v.GetString("write-root"),
	}
}

// RunnerConfig maps the settings onto a runner configuration.
func (s Settings) RunnerConfig(system string) (runner.Config, error) {
	policy, err := runner.ParseUnknownToolPolicy(s.UnknownTool)
	if err != nil {
		return runner.Config{}, err
	}
	var counter windowing.TokenCounter
	switch s.TokenCounter {
	case "", "heuristic":
	case "tiktoken":
		if counter, err = windowing.NewTiktokenCounter(); err != nil {
			return runner.Config{}, err
		}
	default:
		return runner.Config{}, errors.Errorf("token-counter %q: want heuristic or tiktoken", s.TokenCounter)
	}
	return runner.Config{
		Model:            s.Model,
		MaxTokens:        s.MaxTokens,
		System:           system,
		Stream:           s.Stream,
		TokenBudget:      s.TokenBudget,
		Counter:          counter,
		MaxParallelTools: s.ParallelTools,
		MaxRounds:        s.MaxRounds,
		UnknownTool:      policy,
	}, nil
}

// Sandbox confines the file tools to the read-root and write-root
// settings; empty roots default to the working directory.
func (s Settings) Sandbox() (*fsops.Sandbox, error) {
	return fsops.NewSandbox(s.ReadRoot, s.WriteRoot)
}

// ToolsBase is the directory holding the tools roots: the tools-root
// setting when present, otherwise ~/tools.
func (s Settings) ToolsBase() (string, error) {
	if s.ToolsRoot != "" {
		return filepath.Abs(s.ToolsRoot)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, "tools"), nil
}
