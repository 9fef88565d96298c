package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"avtolenta/gigaformat/pkg/config"
	"avtolenta/gigaformat/pkg/formatter"
	"avtolenta/gigaformat/pkg/gigachat"
	"avtolenta/gigaformat/pkg/quota"
	"avtolenta/gigaformat/pkg/telemetry/logging"
)

var fmtFlags struct {
	file string
}

var fmtCmd = &cobra.Command{
	Use:   "fmt [text]",
	Short: "Format a single car listing",
	Long: `Format a single car listing through GigaChat and print the result.

The listing text comes from the argument, from --file, or from stdin.
Token usage is checked against and recorded in the same quota store the
server uses, so one-off runs and the HTTP API share a budget.

Examples:
  # From an argument
  gigaformat fmt "Продам ладу весту 2021, пробег 40 тыс"

  # From a file
  gigaformat fmt --file listing.txt

  # From stdin
  cat listing.txt | gigaformat fmt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFmt,
}

func init() {
	rootCmd.AddCommand(fmtCmd)

	fmtCmd.Flags().StringVarP(&fmtFlags.file, "file", "f", "", "read listing text from file")
}

func runFmt(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Telemetry.Logging.Level
	if !verbose {
		// Keep one-shot output clean unless asked otherwise.
		level = "error"
	}
	logger := logging.Setup(logging.Options{
		Level:     level,
		Format:    "text",
		RedactPII: cfg.RedactPII(),
	})

	text, err := readListingText(args)
	if err != nil {
		return err
	}

	store, err := buildQuotaStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker, err := quota.NewTracker(cfg.Quota.Limits,
		quota.WithStore(store),
		quota.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create quota tracker: %w", err)
	}

	client, err := gigachat.NewClient(cfg.GigaChat)
	if err != nil {
		return fmt.Errorf("failed to create gigachat client: %w", err)
	}
	defer client.Close()

	svcOpts := []formatter.Option{
		formatter.WithLogger(logger),
		formatter.WithEstimator(formatter.NewEstimator(cfg.Formatter.CharsPerToken)),
		formatter.WithTemperature(cfg.Formatter.Temperature),
		formatter.WithMaxTokens(cfg.Formatter.MaxTokens),
	}
	if usageJournal, err := buildJournal(cfg); err == nil && usageJournal != nil {
		defer usageJournal.Close()
		svcOpts = append(svcOpts, formatter.WithJournal(usageJournal))
	}

	service := formatter.NewService(client, tracker, svcOpts...)

	result, err := service.Format(cmd.Context(), text)
	if err != nil {
		return err
	}

	fmt.Println(result.FormattedText)

	if verbose {
		fmt.Fprintf(os.Stderr, "\ntokens: prompt=%d completion=%d total=%d (estimated %d)\n",
			result.Usage.PromptTokens,
			result.Usage.CompletionTokens,
			result.Usage.TotalTokens,
			result.EstimatedTokens,
		)
	}

	return nil
}

// readListingText resolves the listing text from argument, file, or stdin.
func readListingText(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	if fmtFlags.file != "" {
		data, err := os.ReadFile(fmtFlags.file)
		if err != nil {
			return "", fmt.Errorf("failed to read %q: %w", fmtFlags.file, err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no listing text: pass an argument, --file, or stdin")
	}
	return text, nil
}
