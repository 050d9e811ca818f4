package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/config"
	"github.com/c360studio/semtag/source/webtext"
)

func annotateCmd(flags *rootFlags) *cobra.Command {
	var (
		text     string
		filePath string
		pageURL  string
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate text and print the result as JSON",
		Long: `Annotate reads text from --text, --file, --url, or stdin, runs it
through the configured backends, and prints the merged annotation set as
JSON on stdout. Backend diagnostics go to stderr; a failing backend never
fails the command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(flags)
			if err != nil {
				return err
			}
			return runAnnotate(cmd, cfg, text, filePath, pageURL)
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "Text to annotate")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read text from a file")
	cmd.Flags().StringVarP(&pageURL, "url", "u", "", "Fetch and annotate the readable text of a web page")
	cmd.MarkFlagsMutuallyExclusive("text", "file", "url")

	return cmd
}

func runAnnotate(cmd *cobra.Command, cfg *config.Config, text, filePath, pageURL string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	input, err := readInput(ctx, text, filePath, pageURL)
	if err != nil {
		return err
	}

	app := NewApp(cfg, nil)
	res, err := app.LoadResources()
	if err != nil {
		return err
	}
	agg, err := app.BuildAggregator(res, nil)
	if err != nil {
		return err
	}

	result := agg.Annotate(ctx, input)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// readInput resolves the annotation text from the chosen source. Stdin is
// the default when no flag is given.
func readInput(ctx context.Context, text, filePath, pageURL string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	case pageURL != "":
		fetcher := webtext.NewFetcher()
		body, err := fetcher.Text(ctx, pageURL)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", pageURL, err)
		}
		return body, nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if len(data) == 0 {
			return "", &annotation.InputError{Err: fmt.Errorf("no input text: pass --text, --file, --url, or pipe text on stdin")}
		}
		return string(data), nil
	}
}
