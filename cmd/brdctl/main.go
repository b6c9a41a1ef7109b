package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
	"github.com/joseph-ayodele/brd-breakdown/internal/export"
	"github.com/joseph-ayodele/brd-breakdown/internal/extract"
	"github.com/joseph-ayodele/brd-breakdown/internal/ingest"
	"github.com/joseph-ayodele/brd-breakdown/internal/llm"
	"github.com/joseph-ayodele/brd-breakdown/internal/llm/openai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, "Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "brdctl",
		Short:         "Break business requirements documents into epics and user stories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug events to stderr")

	logger := func() *slog.Logger {
		level := "warn"
		if verbose {
			level = "debug"
		}
		return common.NewLogger(common.LogConfig{Level: level}, os.Stderr)
	}

	root.AddCommand(newExtractCmd(logger), newGenerateCmd(logger), newBatchCmd(logger), newExportCmd())
	return root
}

func newExtractCmd(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the plain text extracted from a .txt, .pdf, .doc or .docx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := extractText(cmd.Context(), logger(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newGenerateCmd(logger func() *slog.Logger) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Extract a document and generate epics with the configured LLM",
		Long: `Extracts the document text, sends it to the OpenAI-compatible endpoint
configured by GROQ_API_KEY, LLM_BASE_URL and LLM_MODEL, and writes the
validated epics in the requested format.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			epics, err := generateEpics(cmd.Context(), logger(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			printBreakdown(cmd.ErrOrStderr(), epics)

			return writeArtifact(cmd, epics, f, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml, xlsx)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default: stdout for json/yaml, dated file for xlsx)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export <generation.json>",
		Short: "Convert saved epics (an epic array, {\"epics\": [...]}, or a generation record) to another format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			epics, err := decodeEpics(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return writeArtifact(cmd, epics, f, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "Output format (json, yaml, xlsx)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default: stdout for json/yaml, dated file for xlsx)")
	return cmd
}

func newBatchCmd(logger func() *slog.Logger) *cobra.Command {
	var (
		format     string
		outDir     string
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Generate epics for every .txt, .pdf, .doc and .docx file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			log := logger()
			stderr := cmd.ErrOrStderr()

			results, stats, err := ingest.WalkDocuments(cmd.Context(), args[0], skipHidden, func(ctx context.Context, path string) (string, error) {
				printInfo(stderr, "%s", path)
				epics, err := generateEpics(ctx, log, stderr, path)
				if err != nil {
					return "", err
				}
				art, err := export.Render(epics, f, time.Now())
				if err != nil {
					return "", err
				}
				base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				dst := filepath.Join(outDir, base+"."+string(f))
				return dst, os.WriteFile(dst, art.Body, 0o644)
			})
			for _, r := range results {
				if r.Err != "" {
					printError(stderr, "%s: %s", r.Path, r.Err)
				}
			}
			printInfo(stderr, "scanned=%d matched=%d succeeded=%d failed=%d", stats.Scanned, stats.Matched, stats.Succeeded, stats.Failed)
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", stats.Failed, stats.Matched)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml, xlsx)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "out", "Directory for generated files")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "Skip dot files and directories")
	return cmd
}

// generateEpics extracts path and runs one LLM generation over its text.
func generateEpics(ctx context.Context, log *slog.Logger, stderr io.Writer, path string) ([]entity.Epic, error) {
	text, err := extractText(ctx, log, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("document appears to be empty or unreadable")
	}

	cfg := common.LoadConfig().LLM
	client := openai.NewClient(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		JSONMode:    cfg.JSONMode,
	}, log)

	printInfo(stderr, "Generating with %s (%d chars)", client.Model(), len(text))
	start := time.Now()
	res, err := client.Generate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("generation failed [%s]: %w", llm.CodeOf(err), err)
	}
	printSuccess(stderr, "Generated %d epics and %d stories in %s", len(res.Epics), res.StoryCount(), time.Since(start).Round(time.Millisecond))
	for _, w := range llm.QualityWarnings(res) {
		printWarning(stderr, "%s", w)
	}
	return res.Epics, nil
}

func extractText(ctx context.Context, logger *slog.Logger, path string) (string, error) {
	res, err := extract.NewExtractor(extract.Config{}, logger).Extract(ctx, path, path)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// decodeEpics accepts the three shapes the service and the LLM produce.
func decodeEpics(raw []byte) ([]entity.Epic, error) {
	var list []entity.Epic
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Status string          `json:"status"`
		Epics  json.RawMessage `json:"epics"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("not a JSON epic list or generation: %w", err)
	}
	if wrapped.Status != "" && wrapped.Status != "completed" {
		return nil, fmt.Errorf("generation is %s, not completed", wrapped.Status)
	}
	if len(wrapped.Epics) == 0 {
		return nil, errors.New(`no "epics" field`)
	}
	if err := json.Unmarshal(wrapped.Epics, &list); err != nil {
		return nil, fmt.Errorf("decode epics: %w", err)
	}
	return list, nil
}

func writeArtifact(cmd *cobra.Command, epics []entity.Epic, f export.Format, out string) error {
	art, err := export.Render(epics, f, time.Now())
	if err != nil {
		return err
	}
	if out == "" && f == export.FormatXLSX {
		out = art.Filename
	}
	if out == "" || out == "-" {
		_, err := cmd.OutOrStdout().Write(art.Body)
		return err
	}
	if err := os.WriteFile(out, art.Body, 0o644); err != nil {
		return err
	}
	printSuccess(cmd.ErrOrStderr(), "Wrote %s (%d bytes)", out, len(art.Body))
	return nil
}
