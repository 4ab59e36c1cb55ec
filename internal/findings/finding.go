package findings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Scope is one of the searchable object categories.
type Scope string

const (
	ScopeCode         Scope = "code"
	ScopeCommits      Scope = "commits"
	ScopeIssues       Scope = "issues"
	ScopeRepositories Scope = "repositories"
)

// MatchesColumn holds the serialized text matches in every scope's column list.
const MatchesColumn = "matches"

// AllScopes lists scopes in the order a full run visits them.
var AllScopes = []Scope{ScopeCode, ScopeCommits, ScopeIssues, ScopeRepositories}

// columns defines the field order of each scope's findings.
var columns = map[Scope][]string{
	ScopeCode: {
		"file_name",
		"file_url",
		"sha",
		"repository_id",
		"repository_node_id",
		"repository_name",
		"repository_url",
		MatchesColumn,
	},
	ScopeCommits: {
		"commit_url",
		"sha",
		"comments_url",
		"committer_name",
		"committer_id",
		"committer_email",
		"committer_login",
		"commit_date",
		"message",
		"repository_id",
		"repository_node_id",
		"repository_name",
		"repository_url",
		MatchesColumn,
	},
	ScopeIssues: {
		"issue_id",
		"issue_title",
		"issue_body",
		"issue_url",
		"sha",
		"user_login",
		"user_id",
		"state",
		"updated_at",
		"repository_url",
		MatchesColumn,
	},
	ScopeRepositories: {
		"repository_id",
		"repository_name",
		"repository_description",
		"repository_url",
		"updated_at",
		"owner_login",
		"owner_id",
		"issue_url",
		MatchesColumn,
	},
}

// ParseScope converts a string to a known Scope.
func ParseScope(s string) (Scope, error) {
	scope := Scope(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := columns[scope]; !ok {
		return "", fmt.Errorf("unknown scope %q", s)
	}
	return scope, nil
}

// Columns returns the ordered field names of a scope, including the trailing matches column.
func Columns(scope Scope) []string {
	cols := columns[scope]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// Match is the fragment of an object that matched a query.
type Match struct {
	ObjectURL  string `json:"object_url"`
	ObjectType string `json:"object_type"`
	Fragment   string `json:"fragment"`
}

// Field is a named value of a finding.
type Field struct {
	Name  string
	Value interface{}
}

// Finding is a normalized, scope-shaped detection record.
type Finding struct {
	Scope   Scope
	Fields  []Field
	Matches []Match
}

// Get returns the value of the named field and whether it exists.
func (f Finding) Get(name string) (interface{}, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// String returns the value of the named field formatted for flat outputs such as CSV.
func (f Finding) String(name string) string {
	if name == MatchesColumn {
		data, err := marshal(f.Matches)
		if err != nil {
			return ""
		}
		return string(data)
	}
	v, ok := f.Get(name)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Record returns the finding as a row following Columns(f.Scope).
func (f Finding) Record() []string {
	cols := columns[f.Scope]
	row := make([]string, 0, len(cols))
	for _, col := range cols {
		row = append(row, f.String(col))
	}
	return row
}

// MarshalJSON renders the finding as a flat object with sorted keys.
func (f Finding) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(f.Fields)+1)
	for _, field := range f.Fields {
		m[field.Name] = field.Value
	}
	matches := f.Matches
	if matches == nil {
		matches = []Match{}
	}
	m[MatchesColumn] = matches
	return marshal(m)
}

// Key is the canonical serialized form used for deduplication.
func (f Finding) Key() (string, error) {
	data, err := f.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize finding: %w", err)
	}
	return string(f.Scope) + "\x00" + string(data), nil
}

// Dedupe collapses findings whose canonical serialization is identical.
// The order of the result is not defined.
func Dedupe(in []Finding) []Finding {
	set := make(map[string]Finding, len(in))
	var unkeyed []Finding
	for _, f := range in {
		key, err := f.Key()
		if err != nil {
			unkeyed = append(unkeyed, f)
			continue
		}
		set[key] = f
	}

	out := make([]Finding, 0, len(set)+len(unkeyed))
	for _, f := range set {
		out = append(out, f)
	}
	return append(out, unkeyed...)
}

// marshal encodes JSON without HTML escaping so fragments keep their original characters.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
