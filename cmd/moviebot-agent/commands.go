package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/config"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/tools/preferences"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// buildRunCmd builds the "run" command: a stdin/stdout REPL driving
// C9 (AgentLoop) one line at a time, with the same
// serve-then-signal-shutdown lifecycle as the long-running server
// command, scaled down to a REPL.
func buildRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive household-assistant session",
		Long: `Start a REPL that reads one message per line from stdin, runs it
through the agent loop, and prints the assistant's reply to stdout.
Progress updates are written to stderr so they can be redirected away
without losing the conversation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML/JSON5 configuration file")
	return cmd
}

func runREPL(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer application.tracerStop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	broadcaster := newBroadcaster(cfg, application.logger.Raw())
	broadcaster.StartBackgroundTasks(ctx)
	defer broadcaster.Stop()

	llm, model, err := application.resolver.Resolve(engine.RoleChat)
	if err != nil {
		return fmt.Errorf("resolve chat role: %w", err)
	}

	prefsData, err := application.prefs.Load()
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	loopCfg := engine.LoopConfig{
		MaxIterations:        cfg.LLM.AgentMaxIters,
		KeepLastToolMessages: cfg.Tools.MaxToolMessagesInContext,
		PreferencesContext:   preferences.BuildCompactContext(prefsData),
	}
	loop := application.runtime.NewLoopFor(llm, broadcaster, loopCfg)

	fmt.Fprintln(os.Stderr, "moviebot-agent ready. Type a message and press enter (Ctrl-D to quit).")

	var history []models.Message
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		reply, err := loop.Run(ctx, text, history, model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(reply)
		history = append(history,
			models.Message{Role: models.RoleUser, Content: text},
			models.Message{Role: models.RoleAssistant, Content: reply},
		)
	}
	return scanner.Err()
}

// buildConfigCmd builds the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate moviebot-agent configuration",
	}
	cmd.AddCommand(buildConfigCheckCmd())
	return cmd
}

// buildConfigCheckCmd builds the "config check" command: loads and
// validates configuration, constructs the tool registry and provider
// clients without starting a session, and reports what would run.
func buildConfigCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and report the resolved tool/provider setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigCheck(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML/JSON5 configuration file")
	return cmd
}

func runConfigCheck(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	clients, err := cfg.Providers.BuildProviderClients()
	if err != nil {
		return fmt.Errorf("build provider clients: %w", err)
	}

	fmt.Printf("config ok: %s\n", configPath)
	fmt.Printf("providers: %d configured\n", len(clients))
	schemas := registry.Schemas()
	fmt.Printf("tools: %d registered\n", len(schemas))
	for _, s := range schemas {
		fmt.Printf("  - %s (%s)\n", s.Name, registry.ClassifyFamily(s.Name))
	}
	if cfg.Preferences.Path != "" {
		fmt.Printf("preferences store: %s\n", cfg.Preferences.Path)
	}
	return nil
}
