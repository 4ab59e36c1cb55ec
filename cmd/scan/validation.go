package scan

import (
	"fmt"
	"os"
	"strings"

	"github.com/scan-io-git/watchman/internal/config"
	"github.com/scan-io-git/watchman/internal/sink"
)

// validateScanArgs validates the arguments provided to the scan command.
func validateScanArgs(options *RunOptionsScan, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected positional arguments: %s", strings.Join(args, " "))
	}

	if len(options.Scopes()) == 0 {
		return fmt.Errorf("at least one of 'all', 'code', 'commits', 'issues' or 'repositories' must be specified")
	}

	if options.RulesDir != "" {
		info, err := os.Stat(options.RulesDir)
		if err != nil {
			return fmt.Errorf("the rules directory does not exist: %v", options.RulesDir)
		}
		if !info.IsDir() {
			return fmt.Errorf("the 'rules-dir' flag must point to a directory: %v", options.RulesDir)
		}
	}

	if cfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	if options.Output == sink.ModeStream {
		if err := config.ValidateStreamConfig(&cfg.Logging.JSONTCP); err != nil {
			return err
		}
	}

	return nil
}
