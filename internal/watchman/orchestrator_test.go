package watchman

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/watchman/internal/findings"
	"github.com/scan-io-git/watchman/internal/rules"
	"github.com/scan-io-git/watchman/internal/sink"
	"github.com/scan-io-git/watchman/internal/timeframe"
)

type call struct {
	rule  string
	scope findings.Scope
}

type fakeSearcher struct {
	calls   []call
	results map[call][]findings.Finding
	errs    map[call]error
}

func (f *fakeSearcher) Search(_ context.Context, scope findings.Scope, rule *rules.Rule, _ timeframe.Timeframe, _ sink.Messenger) ([]findings.Finding, error) {
	c := call{rule: rule.Name(), scope: scope}
	f.calls = append(f.calls, c)
	if err := f.errs[c]; err != nil {
		return nil, err
	}
	return f.results[c], nil
}

type emitted struct {
	d  sink.Detection
	fs []findings.Finding
}

type fakeSink struct {
	infos     []string
	criticals []string
	batches   []emitted
	emitErr   error
}

func (s *fakeSink) Info(msg string)     { s.infos = append(s.infos, msg) }
func (s *fakeSink) Critical(msg string) { s.criticals = append(s.criticals, msg) }
func (s *fakeSink) EmitOne(d sink.Detection, f findings.Finding) error {
	return s.EmitMany(d, []findings.Finding{f})
}
func (s *fakeSink) EmitMany(d sink.Detection, fs []findings.Finding) error {
	if s.emitErr != nil {
		return s.emitErr
	}
	s.batches = append(s.batches, emitted{d: d, fs: fs})
	return nil
}
func (s *fakeSink) Close() error { return nil }

func rule(name string, scopes ...string) *rules.Rule {
	return &rules.Rule{
		Enabled:  true,
		Meta:     rules.Meta{Name: name, Severity: "70"},
		Scope:    scopes,
		Strings:  []string{"q"},
		Pattern:  "q",
		Filename: name + ".yaml",
	}
}

func finding(sha string) findings.Finding {
	return findings.Finding{Scope: findings.ScopeCode, Fields: []findings.Field{{Name: "sha", Value: sha}}}
}

func TestRunWalksRulesThenScopes(t *testing.T) {
	searcher := &fakeSearcher{results: map[call][]findings.Finding{
		{rule: "a", scope: findings.ScopeCode}:   {finding("1"), finding("2")},
		{rule: "b", scope: findings.ScopeIssues}: {finding("3")},
	}}
	out := &fakeSink{}

	ruleList := []*rules.Rule{
		rule("a", "code", "commits"),
		rule("b", "issues", "code"),
		rule("c"),
	}
	summary := New(searcher, out, timeframe.AllTime, nil).Run(context.Background(), ruleList, findings.AllScopes)

	assert.Equal(t, []call{
		{rule: "a", scope: findings.ScopeCode},
		{rule: "a", scope: findings.ScopeCommits},
		{rule: "b", scope: findings.ScopeCode},
		{rule: "b", scope: findings.ScopeIssues},
	}, searcher.calls)
	assert.Equal(t, Summary{Rules: 2, Searches: 4, Findings: 3}, summary)

	require.Len(t, out.batches, 2)
	assert.Equal(t, sink.Detection{FileStem: "a", Scope: findings.ScopeCode, RuleName: "a", Severity: "70"}, out.batches[0].d)
	assert.Len(t, out.batches[0].fs, 2)
	assert.Equal(t, "Searching for a in code", out.infos[0])
}

func TestRunHonoursScopeSelection(t *testing.T) {
	searcher := &fakeSearcher{}
	summary := New(searcher, &fakeSink{}, timeframe.Week, nil).
		Run(context.Background(), []*rules.Rule{rule("a", "code", "commits")}, []findings.Scope{findings.ScopeCommits, findings.ScopeRepositories})

	assert.Equal(t, []call{{rule: "a", scope: findings.ScopeCommits}}, searcher.calls)
	assert.Equal(t, 1, summary.Searches)
}

func TestRunContinuesPastFailures(t *testing.T) {
	broken := rule("broken", "code")
	broken.Pattern = "("

	searcher := &fakeSearcher{
		errs: map[call]error{{rule: "a", scope: findings.ScopeCode}: errors.New("502 Bad Gateway")},
		results: map[call][]findings.Finding{
			{rule: "b", scope: findings.ScopeCode}: {finding("1")},
		},
	}
	out := &fakeSink{}

	summary := New(searcher, out, timeframe.AllTime, nil).
		Run(context.Background(), []*rules.Rule{broken, rule("a", "code"), rule("b", "code")}, findings.AllScopes)

	assert.Equal(t, 2, summary.Failures)
	assert.Equal(t, 1, summary.Findings)
	require.Len(t, out.criticals, 2)
	assert.Contains(t, out.criticals[0], "malformed rule")
	assert.Contains(t, out.criticals[1], "502 Bad Gateway")
	assert.NotContains(t, searcher.calls, call{rule: "broken", scope: findings.ScopeCode})
}

func TestRunCountsSinkFailures(t *testing.T) {
	searcher := &fakeSearcher{results: map[call][]findings.Finding{
		{rule: "a", scope: findings.ScopeCode}: {finding("1")},
	}}
	out := &fakeSink{emitErr: errors.New("disk full")}

	summary := New(searcher, out, timeframe.AllTime, nil).
		Run(context.Background(), []*rules.Rule{rule("a", "code")}, findings.AllScopes)

	assert.Equal(t, 1, summary.Failures)
	assert.Zero(t, summary.Findings)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &fakeSearcher{}
	summary := New(searcher, &fakeSink{}, timeframe.AllTime, nil).
		Run(ctx, []*rules.Rule{rule("a", "code")}, findings.AllScopes)

	assert.Empty(t, searcher.calls)
	assert.Zero(t, summary.Rules)
}
