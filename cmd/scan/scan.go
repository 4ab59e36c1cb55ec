package scan

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/watchman/cmd/version"
	"github.com/scan-io-git/watchman/internal/config"
	"github.com/scan-io-git/watchman/internal/findings"
	"github.com/scan-io-git/watchman/internal/github"
	"github.com/scan-io-git/watchman/internal/logger"
	"github.com/scan-io-git/watchman/internal/rules"
	"github.com/scan-io-git/watchman/internal/searcher"
	"github.com/scan-io-git/watchman/internal/sink"
	"github.com/scan-io-git/watchman/internal/timeframe"
	"github.com/scan-io-git/watchman/internal/watchman"
	"github.com/scan-io-git/watchman/pkg/shared/errors"
	"github.com/scan-io-git/watchman/pkg/shared/httpclient"
)

// RunOptionsScan holds the arguments for the scan command.
type RunOptionsScan struct {
	Timeframe    timeframe.Timeframe
	Output       sink.Mode
	All          bool
	Code         bool
	Commits      bool
	Issues       bool
	Repositories bool
	RulesDir     string
	OutputDir    string
}

// Scopes returns the selected scopes in search order.
func (o *RunOptionsScan) Scopes() []findings.Scope {
	if o.All {
		return findings.AllScopes
	}
	var scopes []findings.Scope
	if o.Code {
		scopes = append(scopes, findings.ScopeCode)
	}
	if o.Commits {
		scopes = append(scopes, findings.ScopeCommits)
	}
	if o.Issues {
		scopes = append(scopes, findings.ScopeIssues)
	}
	if o.Repositories {
		scopes = append(scopes, findings.ScopeRepositories)
	}
	return scopes
}

// Global variables for configuration and command arguments
var (
	AppConfig        *config.Config
	scanOptions      = RunOptionsScan{Timeframe: timeframe.AllTime, Output: sink.ModeCSV}
	exampleScanUsage = `  # Search everything changed in the last week and write CSV files to the working directory
  watchman scan --timeframe w --all

  # Search commits and issues from the last 24 hours and print JSON lines
  watchman scan -t d --commits --issues --output stdout

  # Send findings from a custom rule set to a SIEM listening on TCP
  GITHUB_WATCHMAN_HOST=siem.local GITHUB_WATCHMAN_PORT=9020 watchman scan --all --rules-dir ./rules --output stream

  # Produce a SARIF report in a dedicated directory
  watchman scan --code --output sarif --output-dir ./reports`
)

// ScanCmd represents the scan command.
var ScanCmd = &cobra.Command{
	Use:                   "scan [--timeframe/-t {d|w|m|a}] [--output/-o {csv|file|stdout|stream|sarif}] {--all | --code | --commits | --issues | --repositories} [--rules-dir PATH] [--output-dir PATH]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleScanUsage,
	Short:                 "Searches GitHub for exposed secrets using the loaded rules",
	RunE:                  runScanCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runScanCommand executes the scan command.
func runScanCommand(cmd *cobra.Command, args []string) error {
	if cmd.Flags().NFlag() == 0 && len(args) == 0 {
		return cmd.Help()
	}

	log, runID := logger.WithRunID(logger.NewLogger(AppConfig, "core-scan"))

	if err := validateScanArgs(&scanOptions, AppConfig, args); err != nil {
		log.Error("invalid scan arguments", "error", err)
		return errors.NewCommandError(err, errors.ExitCodeInvalidInput)
	}

	ruleList, err := loadRules(scanOptions.RulesDir, log)
	if err != nil {
		log.Error("failed to load rules", "error", err)
		return errors.NewCommandError(err, errors.ExitCodeInvalidInput)
	}

	console := sink.NewConsole(cmd.OutOrStdout())
	out, err := sink.New(sinkOptions(&scanOptions, AppConfig, console, log))
	if err != nil {
		log.Error("failed to create output", "output", scanOptions.Output, "error", err)
		return errors.NewCommandError(err, errors.ExitCodeOutputFailed)
	}

	now := time.Now()
	if scanOptions.Output.Console() {
		console.Banner(version.CoreVersion)
		console.Info(searchWindow(scanOptions.Timeframe, now))
		console.Info(fmt.Sprintf("%d rules loaded", len(ruleList)))
	} else {
		out.Info("GitHub Watchman started execution")
		out.Info(fmt.Sprintf("Version: %s", version.CoreVersion))
		out.Info(fmt.Sprintf("%d rules loaded", len(ruleList)))
		out.Info(searchWindow(scanOptions.Timeframe, now))
	}

	httpClient, err := httpclient.New(log, &AppConfig.HTTPClient)
	if err != nil {
		log.Error("failed to create HTTP client", "error", err)
		_ = out.Close()
		return errors.NewCommandError(err, errors.ExitCodeInvalidInput)
	}
	client := github.NewClient(httpClient, AppConfig.GitHub.URL, AppConfig.GitHub.Token, log.Named("github"),
		github.WithSearchConfig(AppConfig.Search))

	log.Debug("starting scan", "url", client.BaseURL(), "timeframe", scanOptions.Timeframe.Describe(), "scopes", scanOptions.Scopes())
	orchestrator := watchman.New(searcher.New(client, log.Named("searcher")), out, scanOptions.Timeframe, log)
	summary := orchestrator.Run(cmd.Context(), ruleList, scanOptions.Scopes())

	if scanOptions.Output.Console() {
		console.Accent("++++++Audit completed++++++")
	} else {
		out.Info("GitHub Watchman finished execution")
	}

	if err := out.Close(); err != nil {
		log.Error("failed to close output", "output", scanOptions.Output, "error", err)
		return errors.NewCommandError(err, errors.ExitCodeOutputFailed)
	}

	log.Info("scan command completed",
		"run_id", runID,
		"findings", summary.Findings,
		"failures", summary.Failures)
	return nil
}

// searchWindow describes the searched period.
func searchWindow(tf timeframe.Timeframe, now time.Time) string {
	if tf.IsAllTime() {
		return fmt.Sprintf("Searching all time up to %s", now.Format("2006-01-02"))
	}
	return fmt.Sprintf("Searching from %s to %s", tf.Start(now).Format("2006-01-02"), now.Format("2006-01-02"))
}

// loadRules returns the built-in rules, or the rules of dir when set.
// Unreadable rule files are logged and skipped.
func loadRules(dir string, log hclog.Logger) ([]*rules.Rule, error) {
	var (
		ruleList []*rules.Rule
		err      error
	)
	if dir == "" {
		ruleList, err = rules.Builtin()
	} else {
		ruleList, err = rules.Load(os.DirFS(dir))
	}
	if err != nil {
		if len(ruleList) == 0 {
			return nil, err
		}
		log.Warn("some rule files were skipped", "error", err)
	}
	if len(ruleList) == 0 {
		return nil, fmt.Errorf("no enabled rules found")
	}
	return ruleList, nil
}

// sinkOptions resolves sink settings from flags and configuration.
func sinkOptions(opts *RunOptionsScan, cfg *config.Config, console *sink.Console, log hclog.Logger) sink.Options {
	outputDir := config.SetThen(opts.OutputDir, cfg.Output.Dir)
	return sink.Options{
		Mode:       opts.Output,
		OutputDir:  outputDir,
		LogDir:     resolveLogDir(cfg.Logging.FileLogging.Path, console, opts.Output),
		MaxSizeMB:  cfg.Logging.FileLogging.MaxSizeMB,
		MaxBackups: cfg.Logging.FileLogging.MaxBackups,
		StreamHost: cfg.Logging.JSONTCP.Host,
		StreamPort: cfg.Logging.JSONTCP.Port,
		Version:    version.CoreVersion,
		Stdout:     console.Writer(),
		Logger:     log,
	}
}

// resolveLogDir falls back to the home folder when the configured log path does not exist.
func resolveLogDir(path string, console *sink.Console, mode sink.Mode) string {
	if path != "" {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	if mode == sink.ModeFile {
		console.Info("No valid log path given, outputting github_watchman.log file to home path")
	}
	return config.HomeDir()
}

// Initialize flags for the scan command.
func init() {
	ScanCmd.Flags().VarP(&scanOptions.Timeframe, "timeframe", "t", "How far back to search: d = 24 hours, w = 7 days, m = 30 days, a = all time.")
	ScanCmd.Flags().VarP(&scanOptions.Output, "output", "o", "Where to send results: csv, file, stdout, stream or sarif.")
	ScanCmd.Flags().BoolVar(&scanOptions.All, "all", false, "Search code, commits, issues and repositories.")
	ScanCmd.Flags().BoolVar(&scanOptions.Code, "code", false, "Search code.")
	ScanCmd.Flags().BoolVar(&scanOptions.Commits, "commits", false, "Search commits.")
	ScanCmd.Flags().BoolVar(&scanOptions.Issues, "issues", false, "Search issues.")
	ScanCmd.Flags().BoolVar(&scanOptions.Repositories, "repositories", false, "Search repositories.")
	ScanCmd.Flags().StringVar(&scanOptions.RulesDir, "rules-dir", "", "Directory with rule files to use instead of the built-in rules.")
	ScanCmd.Flags().StringVar(&scanOptions.OutputDir, "output-dir", "", "Directory for csv and sarif output. Defaults to output.dir from the config.")
	ScanCmd.Flags().BoolP("help", "h", false, "Show help for the scan command.")
}
