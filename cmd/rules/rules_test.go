package rules

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharederrors "github.com/scan-io-git/watchman/pkg/shared/errors"
)

const failingRule = `filename: failing.yaml
enabled: true
meta:
  name: Failing Rule
  author: tests
  description: Pattern does not match its own cases
  severity: "50"
scope:
  - code
test_cases:
  match_cases:
    - "token=abc"
  fail_cases:
    - "nothing here"
strings:
  - "token"
pattern: "never[0-9]{40}"
`

func runCheck(t *testing.T, dir string) (string, error) {
	t.Helper()
	rulesOptions = RunOptionsRules{RulesDir: dir}
	t.Cleanup(func() { rulesOptions = RunOptionsRules{} })

	var buf bytes.Buffer
	checkCmd.SetOut(&buf)
	err := runCheckCommand(checkCmd, nil)
	return buf.String(), err
}

func TestCheckBuiltinRules(t *testing.T) {
	out, err := runCheck(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "OK ")
	assert.Contains(t, out, "rules passed")
}

func TestCheckReportsFailingRule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "failing.yaml"), []byte(failingRule), 0o600))

	out, err := runCheck(t, dir)
	require.Error(t, err)

	var cmdErr *sharederrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, sharederrors.ExitCodeInvalidInput, cmdErr.ExitCode)
	assert.Equal(t, "1 rule checks failed", cmdErr.Error())
	assert.Contains(t, out, "Failing Rule")
}
