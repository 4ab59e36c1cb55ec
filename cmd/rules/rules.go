package rules

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/watchman/internal/config"
	"github.com/scan-io-git/watchman/internal/logger"
	"github.com/scan-io-git/watchman/internal/rules"
	"github.com/scan-io-git/watchman/internal/sink"
	"github.com/scan-io-git/watchman/pkg/shared/errors"
)

// RunOptionsRules holds the arguments for the rules command.
type RunOptionsRules struct {
	RulesDir string
}

var (
	AppConfig         *config.Config
	rulesOptions      RunOptionsRules
	exampleRulesUsage = `  # Check the built-in rules against their own test cases
  watchman rules check

  # Check a custom rule directory before using it in a scan
  watchman rules check --rules-dir ./rules`
)

// RulesCmd groups rule maintenance commands.
var RulesCmd = &cobra.Command{
	Use:                   "rules [command]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Inspect and check detection rules",
}

var checkCmd = &cobra.Command{
	Use:                   "check [--rules-dir PATH]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleRulesUsage,
	Short:                 "Runs every rule pattern against its match and fail cases",
	RunE:                  runCheckCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runCheckCommand(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(AppConfig, "core-rules")
	console := sink.NewConsole(cmd.OutOrStdout())

	var (
		ruleList []*rules.Rule
		err      error
	)
	if rulesOptions.RulesDir == "" {
		ruleList, err = rules.Builtin()
	} else {
		ruleList, err = rules.Load(os.DirFS(rulesOptions.RulesDir))
	}
	failed := 0
	if err != nil {
		log.Error("failed to load some rules", "error", err)
		console.Critical(err.Error())
		failed++
	}

	for _, rule := range ruleList {
		if checkErr := rule.Check(); checkErr != nil {
			console.Critical(checkErr.Error())
			failed++
			continue
		}
		console.Info(fmt.Sprintf("OK %s (%s)", rule.Name(), rule.Filename))
	}

	if failed > 0 {
		return errors.NewCommandError(fmt.Errorf("%d rule checks failed", failed), errors.ExitCodeInvalidInput)
	}
	console.Accent(fmt.Sprintf("%d rules passed", len(ruleList)))
	return nil
}

func init() {
	checkCmd.Flags().StringVar(&rulesOptions.RulesDir, "rules-dir", "", "Directory with rule files to check instead of the built-in rules.")
	RulesCmd.AddCommand(checkCmd)
}
