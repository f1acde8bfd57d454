package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/petasbytes/tool-runner/internal/runner"
)

func runChat(cmd *cobra.Command, args []string) error {
	a, err := openAgent(cmd, args[0], false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Ctrl-C aborts a running round; when idle it quits.
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigch:
				switch a.runner.State() {
				case runner.Idle, runner.Done:
				default:
					if sig == os.Interrupt {
						a.runner.Abort()
						continue
					}
				}
				fmt.Println("\nExiting...")
				cancel()
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Println("Chat with Claude (Ctrl-C aborts a reply, Ctrl-D quits)")

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		defer close(inputCh)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	forced := a.forced
	for {
		a.printer.Prompt()
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return a.save()
		case line, ok = <-inputCh:
			if !ok {
				fmt.Println()
				if err := scanner.Err(); err != nil {
					log.Warn().Err(err).Msg("stdin read error")
				}
				return a.save()
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		err := a.runner.AskText(ctx, line, forced)
		forced = ""
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			a.printer.Info("[aborted]")
		default:
			a.printer.Info("[error]: %v", err)
		}
		if err := a.save(); err != nil {
			log.Warn().Err(err).Msg("failed to save conversation")
		}
	}
}
