package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/watchman/internal/findings"
)

const informationURI = "https://github.com/scan-io-git/watchman"

// urlColumns is the field holding the object URL of a finding, per scope.
var urlColumns = map[findings.Scope]string{
	findings.ScopeCode:         "file_url",
	findings.ScopeCommits:      "commit_url",
	findings.ScopeIssues:       "issue_url",
	findings.ScopeRepositories: "repository_url",
}

// SARIF collects findings into one SARIF 2.1.0 report written on Close.
type SARIF struct {
	*Console
	dir    string
	now    func() time.Time
	logger hclog.Logger
	report *sarif.Report
	run    *sarif.Run
	rules  map[string]bool
	path   string
}

// NewSARIF creates a SARIF sink writing watchman_<timestamp>.sarif into dir.
func NewSARIF(dir, version string, console *Console, logger hclog.Logger) (*SARIF, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output directory %q: %w", dir, err)
	}
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	run := sarif.NewRunWithInformationURI(Source, informationURI)
	if version != "" {
		run.Tool.Driver.Version = &version
	}

	return &SARIF{
		Console: console,
		dir:     dir,
		now:     time.Now,
		logger:  logger,
		report:  report,
		run:     run,
		rules:   make(map[string]bool),
	}, nil
}

// EmitOne adds a result for the finding.
func (s *SARIF) EmitOne(d Detection, f findings.Finding) error {
	ruleID := ruleID(d)
	if !s.rules[ruleID] {
		s.run.AddRule(ruleID).
			WithName(d.RuleName).
			WithDescription(d.RuleName).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: toSarifErrorLevel(d.Severity),
			})
		s.rules[ruleID] = true
	}

	location := sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.String(urlColumns[d.Scope]))),
	)

	result := sarif.NewRuleResult(ruleID).
		WithMessage(sarif.NewTextMessage(resultMessage(d, f))).
		WithLevel(toSarifErrorLevel(d.Severity)).
		WithLocations([]*sarif.Location{location})
	result.PropertyBag = *sarif.NewPropertyBag()
	result.Properties["scope"] = string(d.Scope)
	result.Properties["severity"] = d.Severity
	result.Properties["matches"] = f.Matches
	s.run.AddResult(result)
	return nil
}

// EmitMany adds a result per finding.
func (s *SARIF) EmitMany(d Detection, fs []findings.Finding) error {
	for _, f := range fs {
		if err := s.EmitOne(d, f); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the report location once Close has run.
func (s *SARIF) Path() string {
	return s.path
}

// Close writes the report.
func (s *SARIF) Close() error {
	s.report.AddRun(s.run)

	s.path = filepath.Join(s.dir, fmt.Sprintf("watchman_%s.sarif", s.now().Format("20060102T150405")))
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error writing SARIF report: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := s.report.PrettyWrite(file); err != nil {
		return fmt.Errorf("error writing SARIF report: %w", err)
	}
	s.Info(fmt.Sprintf("SARIF written: %s", s.path))
	return file.Close()
}

func ruleID(d Detection) string {
	if d.FileStem != "" {
		return d.FileStem
	}
	return strings.ToLower(strings.ReplaceAll(d.RuleName, " ", "_"))
}

func resultMessage(d Detection, f findings.Finding) string {
	if len(f.Matches) == 1 {
		return fmt.Sprintf("%s exposed in %s: %s", d.RuleName, d.Scope, f.Matches[0].Fragment)
	}
	return fmt.Sprintf("%s exposed in %s (%d matches)", d.RuleName, d.Scope, len(f.Matches))
}

// toSarifErrorLevel maps named or numeric (0-100) severities to SARIF levels.
func toSarifErrorLevel(severity string) string {
	switch strings.ToUpper(strings.TrimSpace(severity)) {
	case "CRITICAL", "HIGH":
		return "error"
	case "MEDIUM":
		return "warning"
	case "LOW", "UNKNOWN":
		return "note"
	}
	score, err := strconv.Atoi(strings.TrimSpace(severity))
	if err != nil {
		return "none"
	}
	switch {
	case score >= 70:
		return "error"
	case score >= 40:
		return "warning"
	case score > 0:
		return "note"
	default:
		return "none"
	}
}
