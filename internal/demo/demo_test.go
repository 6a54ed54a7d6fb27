package demo

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildActs_StepNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for i, act := range BuildActs() {
		require.Equal(t, i+1, act.Number)
		require.NotEmpty(t, act.Steps)
		for _, s := range act.Steps {
			require.False(t, seen[s.Name], "duplicate step %s", s.Name)
			seen[s.Name] = true
			require.NotNil(t, s.Fn, s.Name)
		}
	}
}

func TestParseLastJSON_TakesLastObject(t *testing.T) {
	m, err := parseLastJSON("noise\n{\"success\":false}\n{\"success\":true,\"data\":{\"count\":2}}\n")
	require.NoError(t, err)
	require.Equal(t, true, m["success"])
	require.Equal(t, 2, getNum(m, "data", "count"))
	require.Equal(t, -1, getNum(m, "data", "missing"))
	require.Equal(t, "", getStr(m, "data", "count"))

	m, err = parseLastJSON("   ")
	require.NoError(t, err)
	require.Nil(t, m)

	_, err = parseLastJSON("not json")
	require.Error(t, err)
}

func TestExitCodeOf(t *testing.T) {
	require.Equal(t, 0, exitCodeOf(nil))
	require.Equal(t, exitKilled, exitCodeOf(errors.New("wait failed")))

	err := exec.Command("sh", "-c", "exit 4").Run()
	require.Equal(t, 4, exitCodeOf(err))
}

func TestKilled(t *testing.T) {
	require.True(t, killed(exitKilled))
	require.True(t, killed(134))
	require.False(t, killed(0))
	require.False(t, killed(3))
}
