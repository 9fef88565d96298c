package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gigaformat",
	Short: "Car listing formatter backed by GigaChat",
	Long: `Gigaformat turns raw car listing text into a structured form using the
Sber GigaChat API.

It extracts the brand, model, VIN, mileage, year, price, and contact from
free-form seller text, and tracks token spending against the per-request,
daily, and monthly limits of the GigaChat account.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
