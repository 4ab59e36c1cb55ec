package watchman

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/watchman/internal/findings"
	"github.com/scan-io-git/watchman/internal/rules"
	"github.com/scan-io-git/watchman/internal/sink"
	"github.com/scan-io-git/watchman/internal/timeframe"
)

// Searcher runs one rule against one scope.
type Searcher interface {
	Search(ctx context.Context, scope findings.Scope, rule *rules.Rule, tf timeframe.Timeframe, msg sink.Messenger) ([]findings.Finding, error)
}

// Summary counts what a run did.
type Summary struct {
	Rules    int
	Searches int
	Findings int
	Failures int
}

// Orchestrator walks rules and scopes and routes findings to a sink.
type Orchestrator struct {
	searcher  Searcher
	out       sink.Sink
	timeframe timeframe.Timeframe
	logger    hclog.Logger
}

// New creates an Orchestrator.
func New(searcher Searcher, out sink.Sink, tf timeframe.Timeframe, logger hclog.Logger) *Orchestrator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Orchestrator{searcher: searcher, out: out, timeframe: tf, logger: logger}
}

// Run searches every requested scope each rule declares, in rule order.
// Failures are reported and skipped; the run always reaches the last rule unless ctx ends.
func (o *Orchestrator) Run(ctx context.Context, ruleList []*rules.Rule, scopes []findings.Scope) Summary {
	var summary Summary

	for _, rule := range ruleList {
		if ctx.Err() != nil {
			o.logger.Warn("run interrupted", "error", ctx.Err())
			break
		}

		selected := declaredScopes(rule, scopes)
		if len(selected) == 0 {
			continue
		}
		summary.Rules++

		if err := rule.Validate(); err != nil {
			summary.Failures++
			o.logger.Error("skipping rule", "rule", rule.Filename, "error", err)
			o.out.Critical(err.Error())
			continue
		}

		for _, scope := range selected {
			summary.Searches++
			o.out.Info(fmt.Sprintf("Searching for %s in %s", rule.Name(), scope))

			results, err := o.searcher.Search(ctx, scope, rule, o.timeframe, o.out)
			if err != nil {
				summary.Failures++
				o.logger.Error("search failed", "rule", rule.Name(), "scope", scope, "error", err)
				o.out.Critical(fmt.Sprintf("Failed searching for %s in %s: %v", rule.Name(), scope, err))
				continue
			}
			if len(results) == 0 {
				continue
			}

			d := sink.Detection{
				FileStem: rule.FileStem(),
				Scope:    scope,
				RuleName: rule.Name(),
				Severity: rule.Meta.Severity,
			}
			if err := o.out.EmitMany(d, results); err != nil {
				summary.Failures++
				o.logger.Error("failed to emit findings", "rule", rule.Name(), "scope", scope, "count", len(results), "error", err)
				continue
			}
			summary.Findings += len(results)
		}
	}

	o.logger.Info("run finished",
		"rules", summary.Rules,
		"searches", summary.Searches,
		"findings", summary.Findings,
		"failures", summary.Failures)
	return summary
}

// declaredScopes keeps the requested scopes the rule declares, in request order.
func declaredScopes(rule *rules.Rule, requested []findings.Scope) []findings.Scope {
	var out []findings.Scope
	for _, scope := range requested {
		if rule.HasScope(scope) {
			out = append(out, scope)
		}
	}
	return out
}
