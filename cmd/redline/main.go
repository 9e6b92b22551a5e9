package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coolbeans/redline/pkg/clause"
	"github.com/coolbeans/redline/pkg/compare"
	"github.com/coolbeans/redline/pkg/config"
	"github.com/coolbeans/redline/pkg/ingest"
	"github.com/coolbeans/redline/pkg/integrity"
	"github.com/coolbeans/redline/pkg/logging"
	"github.com/coolbeans/redline/pkg/risk"
)

var version = "0.1.0"

// Report formats.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// Global state shared by subcommands, set up in the root pre-run hook.
var (
	appConfig config.Config
	logger    *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redline",
		Short: "Clause-level contract comparison",
		Long: `Redline compares two versions of a contract clause by clause.

It segments each version into headed clauses, aligns them by heading and
text similarity, and reports:
  - Added, deleted, modified, and unchanged clauses
  - Word-level diffs of every modified clause
  - Risk findings for obligation shifts, numeric changes, and date changes
  - Ghost changes: edits made without a track-change marker`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json")
	rootCmd.PersistentFlags().String("rules-dir", "", "Directory of YAML risk rule sets")

	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(scanIntegrityCmd())
	rootCmd.AddCommand(segmentCmd())
	rootCmd.AddCommand(rulesCmd())

	return rootCmd
}

// setup loads the configuration, applies flag overrides, and builds the logger.
func setup(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	logFormat, _ := cmd.Flags().GetString("log-format")
	rulesDir, _ := cmd.Flags().GetString("rules-dir")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if rulesDir != "" {
		cfg.Rules.Directory = rulesDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	built, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appConfig = cfg
	logger = built
	return nil
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two versions of a contract",
		Long: `Compare two versions of a contract and report clause changes, word diffs,
risk findings, and ghost changes.

Example:
  redline compare --a msa-v1.txt --b msa-v2.txt
  redline compare --a msa-v1.txt --b msa-v2.txt --format markdown --output diff.md
  redline compare --a msa-v1.txt --b msa-v2.txt --rules-dir rules --rule-set strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			if err := checkFormat(format); err != nil {
				return err
			}

			result, err := runComparison(cmd)
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case formatJSON:
				data, err = result.ToJSON()
				if err != nil {
					return fmt.Errorf("failed to serialize result: %w", err)
				}
			case formatMarkdown:
				data = []byte(result.RenderMarkdown())
			default:
				data = []byte(result.String())
			}

			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}

	addComparisonFlags(cmd)
	return cmd
}

func scanIntegrityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-integrity",
		Short: "List ghost changes between two versions",
		Long: `List modified clauses where neither version carries the track-change marker.

Example:
  redline scan-integrity --a msa-v1.txt --b msa-v2.txt
  redline scan-integrity --a msa-v1.txt --b msa-v2.txt --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			if format != formatText && format != formatJSON {
				return fmt.Errorf("unknown format %q (use %s or %s)", format, formatText, formatJSON)
			}

			result, err := runComparison(cmd)
			if err != nil {
				return err
			}

			var data []byte
			if format == formatJSON {
				report := struct {
					RunID     string               `json:"run_id"`
					Documents compare.DocumentPair `json:"documents"`
					Alerts    []integrity.Alert    `json:"alerts"`
				}{result.RunID, result.Documents, result.IntegrityAlerts}
				data, err = json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to serialize alerts: %w", err)
				}
			} else {
				data = []byte(result.RenderIntegrity())
			}

			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}

	addComparisonFlags(cmd)
	return cmd
}

func addComparisonFlags(cmd *cobra.Command) {
	cmd.Flags().String("a", "", "Path to version A (required)")
	cmd.Flags().String("b", "", "Path to version B (required)")
	cmd.Flags().StringP("format", "f", formatText, "Output format: text, json, or markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().Float64("threshold", 0, "Override the similarity threshold (0-1)")
	cmd.Flags().String("rule-set", "", "Name of the risk rule set to apply")
	cmd.Flags().Int("workers", 0, "Override the per-clause analysis parallelism")
	cmd.MarkFlagRequired("a")
	cmd.MarkFlagRequired("b")
}

// runComparison reads both versions and runs the comparison engine
// configured from appConfig and the command's flags.
func runComparison(cmd *cobra.Command) (*compare.Result, error) {
	pathA, _ := cmd.Flags().GetString("a")
	pathB, _ := cmd.Flags().GetString("b")

	documentA, err := ingest.ReadFile(pathA)
	if err != nil {
		return nil, fmt.Errorf("failed to read version A: %w", err)
	}
	documentB, err := ingest.ReadFile(pathB)
	if err != nil {
		return nil, fmt.Errorf("failed to read version B: %w", err)
	}

	engine, err := buildEngine(cmd)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	result, err := engine.Compare(cmd.Context(), documentA.Text, documentB.Text)
	if err != nil {
		return nil, fmt.Errorf("comparison failed: %w", err)
	}
	result.Documents.A.Label = documentA.Path
	result.Documents.B.Label = documentB.Path

	logger.Debug("compared documents",
		zap.String("a", documentA.Path),
		zap.String("b", documentB.Path),
		zap.Duration("elapsed", time.Since(startTime)))
	return result, nil
}

func buildEngine(cmd *cobra.Command) (*compare.Engine, error) {
	options := appConfig.AlignmentOptions()
	if cmd.Flags().Changed("threshold") {
		options.SimilarityThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}

	workers := appConfig.Analysis.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}

	ruleSetName := appConfig.Rules.RuleSet
	if name, _ := cmd.Flags().GetString("rule-set"); name != "" {
		ruleSetName = name
	}

	registry, err := risk.NewRegistryWithDirectory(appConfig.Rules.Directory, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule sets: %w", err)
	}
	riskEngine, err := registry.Engine(ruleSetName)
	if err != nil {
		return nil, err
	}

	checker, err := integrity.NewChecker(appConfig.Integrity.Marker)
	if err != nil {
		return nil, err
	}

	return compare.NewEngine(compare.Options{
		Alignment:  options,
		RiskEngine: riskEngine,
		Checker:    checker,
		Workers:    workers,
		Logger:     logger,
	})
}

func segmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Split a document into clauses",
		Long: `Split a document into headed clauses and print them.

Example:
  redline segment --source msa-v1.txt
  redline segment --source msa-v1.txt --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			if source == "" {
				return fmt.Errorf("--source flag is required")
			}
			if format != formatText && format != formatJSON {
				return fmt.Errorf("unknown format %q (use %s or %s)", format, formatText, formatJSON)
			}

			document, err := ingest.ReadFile(source)
			if err != nil {
				return err
			}
			clauses := clause.NewSegmenter().Segment(document.Text)

			if format == formatJSON {
				data, err := json.MarshalIndent(clauses, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to serialize clauses: %w", err)
				}
				return writeOutput(cmd.OutOrStdout(), output, data)
			}

			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("%s: %d clause(s)\n\n", document.Path, len(clauses)))
			for _, c := range clauses {
				sb.WriteString(fmt.Sprintf("[%d] %s\n", c.OrderIndex, c.ID))
				sb.WriteString(fmt.Sprintf("    Heading: %s\n", c.Heading))
				sb.WriteString(fmt.Sprintf("    Text: %s\n", preview(c.Text, 100)))
			}
			return writeOutput(cmd.OutOrStdout(), output, []byte(sb.String()))
		},
	}

	cmd.Flags().StringP("source", "s", "", "Path to the document (required)")
	cmd.Flags().StringP("format", "f", formatText, "Output format: text or json")
	cmd.Flags().StringP("output", "o", "", "Write the clauses to a file instead of stdout")
	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage risk rule sets",
		Long: `List, validate, and watch YAML risk rule sets.

The built-in "default" rule set is always available. Additional rule sets
are loaded from the directory given by --rules-dir or the configuration file.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesValidateCmd())
	cmd.AddCommand(rulesWatchCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available rule sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := risk.NewRegistryWithDirectory(appConfig.Rules.Directory, logger)
			if err != nil {
				return fmt.Errorf("failed to load rule sets: %w", err)
			}

			out := cmd.OutOrStdout()
			ruleSets := registry.List()
			fmt.Fprintf(out, "Rule sets (%d):\n", len(ruleSets))
			for _, ruleSet := range ruleSets {
				fmt.Fprintf(out, "  %s (v%s): %d transitions, %d modals\n",
					ruleSet.Name, ruleSet.Version, len(ruleSet.Transitions), len(ruleSet.Modals))
				if ruleSet.Description != "" {
					fmt.Fprintf(out, "    %s\n", ruleSet.Description)
				}
			}
			return nil
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a YAML rule set file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleSet, err := risk.ReadRuleSetFile(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if _, err := risk.NewEngine(ruleSet); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: rule set %q (v%s) is valid, %d transitions\n",
				args[0], ruleSet.Name, ruleSet.Version, len(ruleSet.Transitions))
			return nil
		},
	}
}

func rulesWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload rule sets as their files change",
		Long: `Watch the rule set directory and reload rule sets when files are
created, changed, or removed. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := appConfig.Rules.Directory
			if dir == "" {
				return fmt.Errorf("--rules-dir flag or rules.directory config is required")
			}

			registry, err := risk.NewRegistryWithDirectory(dir, logger)
			if err != nil {
				return fmt.Errorf("failed to load rule sets: %w", err)
			}

			out := cmd.OutOrStdout()
			registry.SetOnChange(func(event, name string) {
				fmt.Fprintf(out, "%s %s (%d rule sets loaded)\n", event, name, registry.Count())
			})
			if err := registry.Watch(); err != nil {
				return err
			}
			defer registry.StopWatch()

			fmt.Fprintf(out, "Watching %s (%d rule sets loaded). Press Ctrl+C to stop.\n", dir, registry.Count())
			<-cmd.Context().Done()
			return nil
		},
	}
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatMarkdown:
		return nil
	}
	return fmt.Errorf("unknown format %q (use %s, %s, or %s)", format, formatText, formatJSON, formatMarkdown)
}

// writeOutput writes data to path, or to out when path is empty.
func writeOutput(out io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(out, "Report written to: %s\n", path)
	return nil
}

func preview(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}
