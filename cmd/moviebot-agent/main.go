// Command moviebot-agent is the CLI entry point for the household
// media assistant: a REPL that drives C9 (AgentLoop) against a
// terminal, backed by the TMDb/Plex/Radarr/Sonarr tool adapters and
// the local preferences store.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is populated by ldflags at release build time.
//
//	go build -ldflags "-X main.version=$(git describe --tags)"
var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("moviebot-agent: command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "moviebot-agent",
		Short:        "Household media assistant agent engine",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildConfigCmd())
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("MOVIEBOT_CONFIG"); p != "" {
		return p
	}
	return "moviebot.yaml"
}

