package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spectra-g/engram/internal/analysis"
	"github.com/spectra-g/engram/internal/config"
	"github.com/spectra-g/engram/internal/indexing"
	"github.com/spectra-g/engram/internal/knowledge"
	"github.com/spectra-g/engram/internal/logging"
	"github.com/spectra-g/engram/internal/metrics"
	"github.com/spectra-g/engram/internal/store"
)

// backgroundBudget is how long the post-response continuation may run.
const backgroundBudget = 5 * time.Second

func main() {
	logging.Init(os.Getenv(config.EnvLogLevel))

	rootCmd := &cobra.Command{
		Use:           "engram",
		Short:         "Blast radius detector for engineering agents",
		Long:          "engram mines git history for temporal co-change and reports which files are likely to break when you touch one.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(addNoteCmd())
	rootCmd.AddCommand(searchNotesCmd())
	rootCmd.AddCommand(listNotesCmd())
	rootCmd.AddCommand(metricsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printJSON writes the single response object to stdout and flushes
// it so the caller sees the JSON before any background work starts.
func printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	fmt.Println(string(data))
	if err := os.Stdout.Sync(); err != nil {
		logging.Logger.Warn().Err(err).Msg("stdout flush failed")
	}
	return nil
}

func analyzeCmd() *cobra.Command {
	var file, repoRoot string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the blast radius of a file change",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := analysis.Analyze(repoRoot, file)
			if err != nil {
				return err
			}

			recordEvent(repoRoot, func(st *store.Store) error {
				return metrics.RecordAnalysisEvent(st, &result.Response, repoRoot)
			})

			if err := printJSON(result.Response); err != nil {
				return err
			}

			// The continuation runs after the response is on the wire.
			// A panic in it must never affect what was already emitted.
			if result.NeedsBackground {
				runBackground(repoRoot, file)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the file to analyze (relative to repo root)")
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "Path to the git repository root")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("repo-root")

	return cmd
}

// runBackground continues indexing in-process after stdout is
// flushed, isolated behind recover.
func runBackground(repoRoot, file string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger.Error().Interface("panic", r).Msg("background indexing panicked")
		}
	}()
	indexing.Background(repoRoot, backgroundBudget, file)
}

func addNoteCmd() *cobra.Command {
	var file, symbol, content, repoRoot string

	cmd := &cobra.Command{
		Use:   "add-note",
		Short: "Add a note (memory) about a file or symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(repoRoot)
			if err != nil {
				return err
			}
			defer st.Close()

			var symbolName *string
			if symbol != "" {
				symbolName = &symbol
			}

			response, err := knowledge.AddNote(st, file, symbolName, content)
			if err != nil {
				return err
			}

			if err := metrics.RecordNoteEvent(st, response.ID, file, repoRoot); err != nil {
				logging.Logger.Warn().Err(err).Msg("record note event")
			}

			return printJSON(response)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "File path the note relates to")
	cmd.Flags().StringVar(&symbol, "symbol", "", "Optional symbol name the note relates to")
	cmd.Flags().StringVar(&content, "content", "", "The note content")
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "Path to the git repository root")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("content")
	_ = cmd.MarkFlagRequired("repo-root")

	return cmd
}

func searchNotesCmd() *cobra.Command {
	var query, repoRoot string

	cmd := &cobra.Command{
		Use:   "search-notes",
		Short: "Search notes by content or file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(repoRoot)
			if err != nil {
				return err
			}
			defer st.Close()

			response, err := knowledge.SearchNotes(st, query)
			if err != nil {
				return err
			}

			recordEventOn(st, repoRoot, metrics.RecordSearchEvent)

			return printJSON(response)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Search query")
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "Path to the git repository root")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("repo-root")

	return cmd
}

func listNotesCmd() *cobra.Command {
	var file, repoRoot string

	cmd := &cobra.Command{
		Use:   "list-notes",
		Short: "List notes, optionally filtered by file",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(repoRoot)
			if err != nil {
				return err
			}
			defer st.Close()

			var filePath *string
			if file != "" {
				filePath = &file
			}

			response, err := knowledge.ListNotes(st, filePath)
			if err != nil {
				return err
			}

			recordEventOn(st, repoRoot, metrics.RecordListEvent)

			return printJSON(response)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Optional file path filter")
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "Path to the git repository root")
	_ = cmd.MarkFlagRequired("repo-root")

	return cmd
}

func metricsCmd() *cobra.Command {
	var repoRoot string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show aggregated usage metrics for a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(repoRoot)
			if err != nil {
				return err
			}
			defer st.Close()

			response, err := metrics.GetMetrics(st, repoRoot)
			if err != nil {
				return err
			}

			return printJSON(response)
		},
	}

	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "Path to the git repository root")
	_ = cmd.MarkFlagRequired("repo-root")

	return cmd
}

func openStore(repoRoot string) (*store.Store, error) {
	if err := config.EnsureDataDir(repoRoot); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return store.Open(config.DBPath(repoRoot))
}

// recordEvent opens the store just to write a metrics event; failures
// only warn. Used where the analysis already closed its own handle.
func recordEvent(repoRoot string, record func(*store.Store) error) {
	st, err := openStore(repoRoot)
	if err != nil {
		logging.Logger.Warn().Err(err).Msg("open store for metrics")
		return
	}
	defer st.Close()
	if err := record(st); err != nil {
		logging.Logger.Warn().Err(err).Msg("record metrics event")
	}
}

func recordEventOn(st *store.Store, repoRoot string, record func(*store.Store, string) error) {
	if err := record(st, repoRoot); err != nil {
		logging.Logger.Warn().Err(err).Msg("record metrics event")
	}
}
