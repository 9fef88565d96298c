package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"avtolenta/gigaformat/pkg/config"
	"avtolenta/gigaformat/pkg/quota"
	"avtolenta/gigaformat/pkg/telemetry/logging"
)

var quotaFlags struct {
	jsonOutput bool
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show token quota usage",
	Long: `Show the current token usage against the per-request, daily, and
monthly limits.

Usage is read from the same persisted store the server writes to, so
this works while the server is running or between runs.

Examples:
  gigaformat quota
  gigaformat quota --json`,
	RunE: runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)

	quotaCmd.Flags().BoolVar(&quotaFlags.jsonOutput, "json", false, "output as JSON")
}

func runQuota(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(logging.Options{Level: "error", Format: "text"})

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

	scopes := tracker.Status()

	if quotaFlags.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scopes)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tUSED\tLIMIT\tREMAINING\tRESETS")
	for _, s := range scopes {
		limit := fmt.Sprintf("%d", s.Limit)
		if s.Limit == 0 {
			limit = "unlimited"
		}
		reset := "-"
		if !s.Reset.IsZero() {
			reset = s.Reset.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", s.Scope, s.Used, limit, s.Remaining, reset)
	}
	return w.Flush()
}
