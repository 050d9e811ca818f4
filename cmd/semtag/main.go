// Package main provides the semtag binary entry point.
// Semtag annotates free text against a shared vocabulary hierarchy by
// fanning each request out to several independent annotation backends
// and merging their results deterministically.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semtag"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "semtag",
		Short: "Multi-source text annotation against a shared vocabulary",
		Long: `Semtag dispatches text to several annotation backends in parallel,
normalizes their heterogeneous identifiers into one vocabulary hierarchy,
and merges the results into a single deduplicated annotation set.

Backends fail independently: a model being down, a mapping miss, or a
timeout costs that backend's annotations and nothing else.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(flags.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(annotateCmd(flags))
	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(vocabCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// configureLogging installs the process-wide logger on stderr so stdout
// stays reserved for result JSON.
func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
