package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grammar-fix/src/config"
	"grammar-fix/src/logutil"
	"grammar-fix/src/runtimeinit"
)

const (
	maxInputSizeKB = 256
	maxInputSize   = maxInputSizeKB * 1024
)

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
}

type corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"grammar-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, nil)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

// newRootCmd builds the command. A nil corr means "build one from configuration".
func newRootCmd(opts *cliOptions, corr corrector) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "grammar-cli",
		Short:         "Correct grammar, spelling and punctuation of a text once",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if corr == nil {
				c, err := correctorFromConfig(*opts, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				corr = c
			}
			return correctInput(cmd.Context(), *opts, corr, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to text file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func correctorFromConfig(opts cliOptions, stderr io.Writer) (corrector, error) {
	cfg, log, err := runtimeinit.LoadConfig(runtimeinit.Options{
		LoadOptions: config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath},
		// stdout carries only the corrected text; logs go to stderr when verbose.
		SetupLogging: func(bool, string) *zap.SugaredLogger {
			if !opts.verbose {
				return zap.NewNop().Sugar()
			}
			return logutil.Setup(false, "debug")
		},
	})
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		fmt.Fprintf(stderr, "[verbose] Config loaded: Model=%s BaseURL=%s\n", cfg.Model, cfg.BaseURL)
		fmt.Fprintf(stderr, "[verbose] Effective API key path: %s (key %s)\n", cfg.APIKeyPath, logutil.RedactKey(cfg.APIKey))
	}
	return runtimeinit.NewCorrector(cfg, log), nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "api-key-path"} {
			single := "-" + name
			if arg == single || strings.HasPrefix(arg, single+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

func readInput(filePath string, stdin io.Reader) (string, error) {
	var data []byte
	var err error

	if filePath == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxInputSize+1))
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("input is empty")
	}
	if len(data) > maxInputSize {
		return "", fmt.Errorf("input exceeds maximum size of %d KB", maxInputSizeKB)
	}
	if !utf8.Valid(data) {
		return "", errors.New("input is not valid UTF-8 text")
	}
	return string(data), nil
}

func correctInput(ctx context.Context, opts cliOptions, corr corrector, stdin io.Reader, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	text, err := readInput(opts.filePath, stdin)
	if err != nil {
		return err
	}
	if opts.verbose {
		fmt.Fprintf(stderr, "[verbose] Read %d characters\n", utf8.RuneCountInString(text))
	}

	startTime := time.Now()
	corrected, err := corr.Correct(ctx, text)
	elapsed := time.Since(startTime)
	if err != nil {
		if opts.verbose {
			fmt.Fprintf(stderr, "[verbose] Correction failed after %v: %v\n", elapsed, err)
		}
		return fmt.Errorf("correction failed: %w", err)
	}

	if opts.verbose {
		fmt.Fprintf(stderr, "[verbose] Correction completed in %v\n", elapsed)
	}

	return outputResult(stdout, text, corrected, opts.filePath, elapsed, opts.jsonOutput)
}

type CorrectionResult struct {
	Text      string  `json:"text"`
	Original  string  `json:"original"`
	Changed   bool    `json:"changed"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func outputResult(w io.Writer, original, corrected, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprint(w, corrected)
		return err
	}

	result := CorrectionResult{
		Text:      corrected,
		Original:  original,
		Changed:   corrected != original,
		Source:    sourcePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: utf8.RuneCountInString(corrected),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
