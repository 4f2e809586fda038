package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashgrovelabs/tutord/internal/directive"
)

var (
	checkOptionalCorrectness bool
	checkBaseConfig          string
)

// checkCmd validates grading config files locally, without a server
var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Validate grading config files",
	Long: `Validate grading configuration files before deploying them.

Every template is parsed and every reference is checked against the keys
earlier steps produce, so a config that passes here will not fail at
render time.

With --base, files are validated as workflow overrides against the given
base grading config instead.

Examples:
  # Validate a grading config
  tutorctl check tutor.json

  # Validate a config whose deployment does not require a correctness verdict
  tutorctl check --optional-correctness essay.json

  # Validate workflow overrides against their base config
  tutorctl check --base tutor.json workflows/retry.json workflows/hints.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkOptionalCorrectness, "optional-correctness", false, "do not require a correctness directive")
	checkCmd.Flags().StringVar(&checkBaseConfig, "base", "", "validate files as workflow overrides against this grading config")
}

// runCheck handles the check command
func runCheck(cmd *cobra.Command, args []string) error {
	contract := directive.Contract{RequireCorrectness: !checkOptionalCorrectness}

	var base *directive.Config
	if checkBaseConfig != "" {
		var err error
		base, err = directive.LoadConfig(checkBaseConfig, contract)
		if err != nil {
			return fmt.Errorf("base config: %w", err)
		}
	}

	failures := 0
	for _, path := range args {
		if err := checkFile(path, base, contract); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failures, len(args))
	}
	return nil
}

// checkFile validates one file as a grading config, or as a workflow
// override when a base config is given.
func checkFile(path string, base *directive.Config, contract directive.Contract) error {
	if base != nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ds, err := directive.ParseWorkflow(data)
		if err != nil {
			return err
		}
		if _, err := base.WithDirectives(ds); err != nil {
			return err
		}
		fmt.Printf("OK   %s (workflow: %s)\n", path, strings.Join(ds.Names(), ", "))
		return nil
	}

	cfg, err := directive.LoadConfig(path, contract)
	if err != nil {
		return err
	}
	fmt.Printf("OK   %s (directives: %s)\n", path, strings.Join(cfg.Directives.Names(), ", "))
	return nil
}
