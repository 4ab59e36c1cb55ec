package rules

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v2"

	"github.com/scan-io-git/watchman/internal/findings"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// blankCase marks a test case slot that is intentionally empty.
const blankCase = "blank"

// matchTimeout bounds a single regex evaluation.
const matchTimeout = 5 * time.Second

// Meta describes a rule for humans.
type Meta struct {
	Name        string `yaml:"name"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
}

// TestCases are sample strings the pattern must or must not match.
type TestCases struct {
	MatchCases []string `yaml:"match_cases"`
	FailCases  []string `yaml:"fail_cases"`
}

// Rule is one detection: the queries sent to the search API and the pattern that confirms a hit.
type Rule struct {
	Enabled   bool      `yaml:"enabled"`
	Meta      Meta      `yaml:"meta"`
	Scope     []string  `yaml:"scope"`
	Strings   []string  `yaml:"strings"`
	Pattern   string    `yaml:"pattern"`
	TestCases TestCases `yaml:"test_cases"`
	Filename  string    `yaml:"filename"`

	re *regexp2.Regexp
}

// MalformedRuleError is returned when a rule cannot be used for searching.
type MalformedRuleError struct {
	Rule   string
	Reason string
	Err    error
}

func (e *MalformedRuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed rule %q: %s: %v", e.Rule, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed rule %q: %s", e.Rule, e.Reason)
}

func (e *MalformedRuleError) Unwrap() error { return e.Err }

// Name returns the rule's display name.
func (r *Rule) Name() string {
	if r.Meta.Name != "" {
		return r.Meta.Name
	}
	return r.Filename
}

// FileStem is the rule file name without its extension.
func (r *Rule) FileStem() string {
	stem := path.Base(r.Filename)
	if i := strings.Index(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	return stem
}

// HasScope reports whether the rule declares the scope.
func (r *Rule) HasScope(scope findings.Scope) bool {
	for _, s := range r.Scope {
		if strings.EqualFold(strings.TrimSpace(s), string(scope)) {
			return true
		}
	}
	return false
}

// Validate checks that the rule has queries and a compilable pattern, and compiles it.
func (r *Rule) Validate() error {
	if len(r.Strings) == 0 {
		return &MalformedRuleError{Rule: r.Name(), Reason: "no search strings"}
	}
	for _, s := range r.Strings {
		if strings.TrimSpace(s) == "" {
			return &MalformedRuleError{Rule: r.Name(), Reason: "empty search string"}
		}
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return &MalformedRuleError{Rule: r.Name(), Reason: "empty pattern"}
	}
	for _, s := range r.Scope {
		if _, err := findings.ParseScope(s); err != nil {
			return &MalformedRuleError{Rule: r.Name(), Reason: "invalid scope", Err: err}
		}
	}
	if r.re != nil {
		return nil
	}
	re, err := regexp2.Compile(r.Pattern, regexp2.None)
	if err != nil {
		return &MalformedRuleError{Rule: r.Name(), Reason: "pattern does not compile", Err: err}
	}
	re.MatchTimeout = matchTimeout
	r.re = re
	return nil
}

// Matches reports whether the pattern finds a match anywhere in text.
func (r *Rule) Matches(text string) (bool, error) {
	if r.re == nil {
		if err := r.Validate(); err != nil {
			return false, err
		}
	}
	ok, err := r.re.MatchString(text)
	if err != nil {
		return false, fmt.Errorf("rule %q: %w", r.Name(), err)
	}
	return ok, nil
}

// Check validates the rule and runs its test cases.
// Every match case must match and no fail case may match; "blank" entries are skipped.
func (r *Rule) Check() error {
	if err := r.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, tc := range r.TestCases.MatchCases {
		if tc == blankCase {
			continue
		}
		ok, err := r.Matches(tc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			errs = append(errs, fmt.Errorf("rule %q does not detect match case %q", r.Name(), tc))
		}
	}
	for _, tc := range r.TestCases.FailCases {
		if tc == blankCase {
			continue
		}
		ok, err := r.Matches(tc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			errs = append(errs, fmt.Errorf("rule %q detects fail case %q", r.Name(), tc))
		}
	}
	return errors.Join(errs...)
}

// Parse decodes a single rule file. filename fills Rule.Filename when the file does not set it.
func Parse(data []byte, filename string) (*Rule, error) {
	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("malformed YAML %s: %w", filename, err)
	}
	if rule.Filename == "" {
		rule.Filename = path.Base(filename)
	}
	return &rule, nil
}

// Load reads every *.yaml/*.yml file at the root of fsys and returns the enabled rules sorted by file name.
// Files that fail to parse are reported in the joined error; the rest are still returned.
func Load(fsys fs.FS) ([]*Rule, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		rules []*Rule
		errs  []error
	)
	for _, entry := range entries {
		if entry.IsDir() || !isRuleFile(entry.Name()) {
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read %s: %w", entry.Name(), err))
			continue
		}
		rule, err := Parse(data, entry.Name())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rule.Enabled {
			rules = append(rules, rule)
		}
	}
	return rules, errors.Join(errs...)
}

// Builtin returns the enabled rules shipped with the binary.
func Builtin() ([]*Rule, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

func isRuleFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
