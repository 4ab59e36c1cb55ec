package searcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v47/github"
	"github.com/hashicorp/go-hclog"
	"github.com/jellydator/ttlcache/v3"

	"github.com/scan-io-git/watchman/internal/findings"
	"github.com/scan-io-git/watchman/internal/github"
	"github.com/scan-io-git/watchman/internal/rules"
	"github.com/scan-io-git/watchman/internal/sink"
	"github.com/scan-io-git/watchman/internal/timeframe"
)

// repositoryTTL bounds how long a parent repository lookup is reused within a run.
const repositoryTTL = 30 * time.Minute

// API is the part of the GitHub client a Searcher needs.
type API interface {
	MultipageSearch(ctx context.Context, endpoint, query, mediaType string) ([]github.Hit, error)
	GetRepository(ctx context.Context, fullName string) (*github.Hit, error)
}

// Searcher runs a rule's queries against one scope and keeps the hits that pass the filters.
type Searcher struct {
	api    API
	logger hclog.Logger
	now    func() time.Time
	repos  *ttlcache.Cache[string, *github.Hit]
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithClock replaces time.Now for the time window.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// New creates a Searcher.
func New(api API, logger hclog.Logger, opts ...Option) *Searcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Searcher{
		api:    api,
		logger: logger,
		now:    time.Now,
		repos: ttlcache.New[string, *github.Hit](
			ttlcache.WithTTL[string, *github.Hit](repositoryTTL),
			ttlcache.WithDisableTouchOnHit[string, *github.Hit](),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs every query of rule against scope and returns the deduplicated findings.
// Progress is reported through msg.
func (s *Searcher) Search(ctx context.Context, scope findings.Scope, rule *rules.Rule, tf timeframe.Timeframe, msg sink.Messenger) ([]findings.Finding, error) {
	spec, ok := scopes[scope]
	if !ok {
		return nil, fmt.Errorf("unsupported scope %q", scope)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var results []findings.Finding
	for _, query := range rule.Strings {
		hits, err := s.api.MultipageSearch(ctx, spec.endpoint, query, spec.mediaType)
		if err != nil {
			return nil, fmt.Errorf("%s search for %q failed: %w", scope, query, err)
		}

		display := strings.ReplaceAll(query, `"`, "")
		if len(hits) == 0 {
			msg.Info(fmt.Sprintf("No %s found matching: %s", spec.noun, display))
			continue
		}
		msg.Info(fmt.Sprintf("%d %s found matching: %s", len(hits), spec.noun, display))

		for i := range hits {
			hit := &hits[i]
			keep, err := s.accept(ctx, spec, rule, hit, tf, now)
			if err != nil {
				return nil, err
			}
			if keep {
				results = append(results, spec.finding(scope, hit))
			}
		}
	}

	results = findings.Dedupe(results)
	if len(results) == 0 {
		msg.Info("No matches found after filtering")
		return nil, nil
	}
	msg.Info(fmt.Sprintf("%d total matches found after filtering", len(results)))
	return results, nil
}

// accept applies the regex and then the time window to a hit.
func (s *Searcher) accept(ctx context.Context, spec scopeSpec, rule *rules.Rule, hit *github.Hit, tf timeframe.Timeframe, now time.Time) (bool, error) {
	matched, err := rule.Matches(renderTextMatches(hit.TextMatches))
	if err != nil {
		return false, err
	}
	if !matched {
		return false, nil
	}
	if tf.IsAllTime() {
		return true, nil
	}

	ts, err := s.windowTimestamp(ctx, spec, hit)
	if err != nil {
		return false, err
	}
	epoch, err := timeframe.ParseTimestamp(ts)
	if err != nil {
		s.logger.Warn("skipping hit with unreadable timestamp", "url", hit.HTMLURL, "timestamp", ts, "error", err)
		return false, nil
	}
	return tf.Within(epoch, now), nil
}

func (s *Searcher) windowTimestamp(ctx context.Context, spec scopeSpec, hit *github.Hit) (string, error) {
	if spec.window == ownTimestamp {
		return spec.timestamp(hit), nil
	}

	fullName := hit.Repository.GetFullName()
	if fullName == "" {
		return "", nil
	}
	if item := s.repos.Get(fullName); item != nil {
		return item.Value().UpdatedAt, nil
	}
	repo, err := s.api.GetRepository(ctx, fullName)
	if err != nil {
		return "", fmt.Errorf("failed to fetch repository %s: %w", fullName, err)
	}
	s.repos.Set(fullName, repo, ttlcache.DefaultTTL)
	return repo.UpdatedAt, nil
}

// renderTextMatches writes the text match block the rule pattern is applied to.
// Fragments are copied verbatim so quotes and backslashes reach the pattern unchanged.
func renderTextMatches(matches []*gh.TextMatch) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, tm := range matches {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "{object_url: %s, object_type: %s, property: %s, fragment: %s}",
			tm.GetObjectURL(), tm.GetObjectType(), tm.GetProperty(), tm.GetFragment())
	}
	b.WriteByte(']')
	return b.String()
}
