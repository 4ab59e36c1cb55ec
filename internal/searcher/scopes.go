package searcher

import (
	"github.com/scan-io-git/watchman/internal/findings"
	"github.com/scan-io-git/watchman/internal/github"
)

// windowPolicy selects which timestamp a hit is windowed on.
type windowPolicy int

const (
	// ownTimestamp uses a timestamp carried by the hit itself.
	ownTimestamp windowPolicy = iota
	// parentRepository uses updated_at of the repository the hit belongs to.
	parentRepository
)

type fieldMapping struct {
	column string
	value  func(h *github.Hit) interface{}
}

// scopeSpec drives the generic hit to finding transform for one scope.
type scopeSpec struct {
	endpoint  string
	mediaType string
	noun      string
	window    windowPolicy
	timestamp func(h *github.Hit) string
	fields    []fieldMapping
}

var scopes = map[findings.Scope]scopeSpec{
	findings.ScopeCode: {
		endpoint:  "search/code",
		mediaType: github.MediaTypeTextMatch,
		noun:      "code fragments",
		window:    parentRepository,
		fields: []fieldMapping{
			{"file_name", func(h *github.Hit) interface{} { return h.Name }},
			{"file_url", func(h *github.Hit) interface{} { return h.HTMLURL }},
			{"sha", func(h *github.Hit) interface{} { return h.SHA }},
			{"repository_id", func(h *github.Hit) interface{} { return h.Repository.GetID() }},
			{"repository_node_id", func(h *github.Hit) interface{} { return h.Repository.GetNodeID() }},
			{"repository_name", func(h *github.Hit) interface{} { return h.Repository.GetName() }},
			{"repository_url", func(h *github.Hit) interface{} { return h.Repository.GetHTMLURL() }},
		},
	},
	findings.ScopeCommits: {
		endpoint:  "search/commits",
		mediaType: github.MediaTypeCommitTextMatch,
		noun:      "commits",
		window:    ownTimestamp,
		timestamp: func(h *github.Hit) string { return commitAuthor(h).Date },
		fields: []fieldMapping{
			{"commit_url", func(h *github.Hit) interface{} { return h.HTMLURL }},
			{"sha", func(h *github.Hit) interface{} { return h.SHA }},
			{"comments_url", func(h *github.Hit) interface{} { return h.CommentsURL }},
			{"committer_name", func(h *github.Hit) interface{} { return commitAuthor(h).Name }},
			{"committer_id", func(h *github.Hit) interface{} { return h.Committer.GetID() }},
			{"committer_email", func(h *github.Hit) interface{} { return commitAuthor(h).Email }},
			{"committer_login", func(h *github.Hit) interface{} { return h.Committer.GetLogin() }},
			{"commit_date", func(h *github.Hit) interface{} { return commitAuthor(h).Date }},
			{"message", func(h *github.Hit) interface{} { return commitMessage(h) }},
			{"repository_id", func(h *github.Hit) interface{} { return h.Repository.GetID() }},
			{"repository_node_id", func(h *github.Hit) interface{} { return h.Repository.GetNodeID() }},
			{"repository_name", func(h *github.Hit) interface{} { return h.Repository.GetName() }},
			{"repository_url", func(h *github.Hit) interface{} { return h.Repository.GetHTMLURL() }},
		},
	},
	findings.ScopeIssues: {
		endpoint:  "search/issues",
		mediaType: github.MediaTypeTextMatch,
		noun:      "issues",
		window:    ownTimestamp,
		timestamp: func(h *github.Hit) string { return h.UpdatedAt },
		fields: []fieldMapping{
			{"issue_id", func(h *github.Hit) interface{} { return h.ID }},
			{"issue_title", func(h *github.Hit) interface{} { return h.Title }},
			{"issue_body", func(h *github.Hit) interface{} { return h.Body }},
			{"issue_url", func(h *github.Hit) interface{} { return h.HTMLURL }},
			{"sha", func(h *github.Hit) interface{} { return h.SHA }},
			{"user_login", func(h *github.Hit) interface{} { return h.User.GetLogin() }},
			{"user_id", func(h *github.Hit) interface{} { return h.User.GetID() }},
			{"state", func(h *github.Hit) interface{} { return h.State }},
			{"updated_at", func(h *github.Hit) interface{} { return h.UpdatedAt }},
			{"repository_url", func(h *github.Hit) interface{} { return h.RepositoryURL }},
		},
	},
	findings.ScopeRepositories: {
		endpoint:  "search/repositories",
		mediaType: github.MediaTypeTextMatch,
		noun:      "repositories",
		window:    ownTimestamp,
		timestamp: func(h *github.Hit) string { return h.UpdatedAt },
		fields: []fieldMapping{
			{"repository_id", func(h *github.Hit) interface{} { return h.ID }},
			{"repository_name", func(h *github.Hit) interface{} { return h.FullName }},
			{"repository_description", func(h *github.Hit) interface{} { return h.Description }},
			{"repository_url", func(h *github.Hit) interface{} { return h.HTMLURL }},
			{"updated_at", func(h *github.Hit) interface{} { return h.UpdatedAt }},
			{"owner_login", func(h *github.Hit) interface{} { return h.Owner.GetLogin() }},
			{"owner_id", func(h *github.Hit) interface{} { return h.Owner.GetID() }},
			{"issue_url", func(h *github.Hit) interface{} { return h.HTMLURL }},
		},
	},
}

// finding builds the scope-shaped record for a hit that passed both filters.
func (s scopeSpec) finding(scope findings.Scope, h *github.Hit) findings.Finding {
	fields := make([]findings.Field, 0, len(s.fields))
	for _, m := range s.fields {
		fields = append(fields, findings.Field{Name: m.column, Value: m.value(h)})
	}
	matches := make([]findings.Match, 0, len(h.TextMatches))
	for _, tm := range h.TextMatches {
		matches = append(matches, findings.Match{
			ObjectURL:  tm.GetObjectURL(),
			ObjectType: tm.GetObjectType(),
			Fragment:   tm.GetFragment(),
		})
	}
	return findings.Finding{Scope: scope, Fields: fields, Matches: matches}
}

func commitAuthor(h *github.Hit) github.CommitAuthor {
	if h.Commit == nil || h.Commit.Committer == nil {
		return github.CommitAuthor{}
	}
	return *h.Commit.Committer
}

func commitMessage(h *github.Hit) string {
	if h.Commit == nil {
		return ""
	}
	return h.Commit.Message
}
