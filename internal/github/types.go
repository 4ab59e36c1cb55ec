package github

import (
	gh "github.com/google/go-github/v47/github"
)

// Media types accepted by the search API.
const (
	MediaTypeTextMatch       = "application/vnd.github.v3.text-match+json"
	MediaTypeCommitTextMatch = "application/vnd.github.cloak-preview.text-match+json"
)

// Hit is one item of a search page. It is the union of the fields the
// code, commits, issues and repositories endpoints return.
// Timestamps stay as strings because commit dates carry a numeric zone offset.
type Hit struct {
	ID            int64           `json:"id,omitempty"`
	NodeID        string          `json:"node_id,omitempty"`
	Name          string          `json:"name,omitempty"`
	FullName      string          `json:"full_name,omitempty"`
	Path          string          `json:"path,omitempty"`
	SHA           string          `json:"sha,omitempty"`
	HTMLURL       string          `json:"html_url,omitempty"`
	CommentsURL   string          `json:"comments_url,omitempty"`
	Title         string          `json:"title,omitempty"`
	Body          string          `json:"body,omitempty"`
	State         string          `json:"state,omitempty"`
	Description   string          `json:"description,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
	RepositoryURL string          `json:"repository_url,omitempty"`
	User          *gh.User        `json:"user,omitempty"`
	Owner         *gh.User        `json:"owner,omitempty"`
	Committer     *gh.User        `json:"committer,omitempty"`
	Commit        *CommitDetail   `json:"commit,omitempty"`
	Repository    *gh.Repository  `json:"repository,omitempty"`
	TextMatches   []*gh.TextMatch `json:"text_matches,omitempty"`
}

// CommitDetail is the git commit object embedded in a commit search hit.
type CommitDetail struct {
	Message   string        `json:"message,omitempty"`
	Committer *CommitAuthor `json:"committer,omitempty"`
}

// CommitAuthor identifies the git committer of a commit.
type CommitAuthor struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Date  string `json:"date,omitempty"`
}

// SearchPage is one page of a search response.
type SearchPage struct {
	TotalCount        int   `json:"total_count"`
	IncompleteResults bool  `json:"incomplete_results"`
	Items             []Hit `json:"items"`
}
