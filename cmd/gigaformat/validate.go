package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"avtolenta/gigaformat/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting anything.

Prints every problem found, not just the first one.

Examples:
  gigaformat validate --config config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("no config file: use --config")
	}

	_, err := config.Load(cfgFile)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Printf("✗ %s: %d problem(s)\n", cfgFile, len(verrs))
			for _, ve := range verrs {
				fmt.Printf("  - %s\n", ve)
			}
			return fmt.Errorf("configuration invalid")
		}
		return err
	}

	fmt.Printf("✓ %s is valid\n", cfgFile)
	return nil
}
