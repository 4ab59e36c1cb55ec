package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/watchman/cmd/rules"
	"github.com/scan-io-git/watchman/cmd/scan"
	"github.com/scan-io-git/watchman/cmd/version"
	"github.com/scan-io-git/watchman/internal/config"
	sharederrors "github.com/scan-io-git/watchman/pkg/shared/errors"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "watchman [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "GitHub Watchman searches GitHub for exposed secrets and sensitive data.",
		Long: `GitHub Watchman runs a set of detection rules against the GitHub search API
	and reports code, commits, issues and repositories that expose secrets or personal data.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/watchman.conf)")
	rootCmd.AddCommand(scan.ScanCmd)
	rootCmd.AddCommand(rules.RulesCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		var cmdErr *sharederrors.CommandError
		if errors.As(err, &cmdErr) {
			return cmdErr.ExitCode
		}
		return sharederrors.ExitCodeInvalidInput
	}
	return 0
}

func initConfig() {
	var err error

	AppConfig, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing config failed - %v\n", err)
		os.Exit(sharederrors.ExitCodeInvalidInput)
	}

	scan.Init(AppConfig)
	rules.Init(AppConfig)
}
