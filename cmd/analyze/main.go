// Package main provides a command line entry point that analyzes a single
// contract file and prints the report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"contractlens-backend/app"
	"contractlens-backend/config"
	"contractlens-backend/models"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		file     string
		logLevel string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a contract against the Constitution of India",
		Long: `Analyze extracts the legal themes of a contract, retrieves the most
relevant constitutional articles for each theme and checks that every
explanation is supported by the articles it cites.

The contract is read from --file, or from stdin when --file is "-".`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), file, logLevel, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Contract file path, - for stdin")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "Output format (json, text)")

	return cmd
}

func run(ctx context.Context, file, logLevel, format string, out io.Writer) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("unknown output format %q", format)
	}

	text, err := readContract(file)
	if err != nil {
		return err
	}

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		if cfg.LogLevel, err = config.ParseLevel(logLevel); err != nil {
			return err
		}
	}
	logger := config.NewLogger(cfg.LogLevel)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Pipeline.Analyze(ctx, text)
	if err != nil {
		return err
	}

	if format == "text" {
		return printText(out, report)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func readContract(file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read contract: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("contract is empty")
	}
	return text, nil
}

func printText(w io.Writer, r *models.AnalysisReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis %s\n\n%s\n", r.ID, r.Summary)
	for _, br := range r.Branches {
		fmt.Fprintf(&b, "\n== %s [%s]\n", br.Theme, br.Status)
		if br.Error != "" {
			fmt.Fprintf(&b, "error: %s\n", br.Error)
		}
		if br.Retrieval != nil {
			for _, s := range br.Retrieval.Sources {
				fmt.Fprintf(&b, "  - Article %s %s (%.3f)\n", s.Article, s.Title, s.Score)
			}
			fmt.Fprintf(&b, "%s\n", br.Retrieval.Explanation)
		}
		if br.Verdict != nil {
			fmt.Fprintf(&b, "verification: %s score=%.2f supported=%t\n", br.Verdict.Kind, br.Verdict.Score, br.Verdict.Supported)
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n! %s", e)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
