package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestApplyWritesOutputFile(t *testing.T) {
	in := writeInput(t, "name,age\nAnn,30\nBob,10\n")
	out := filepath.Join(t.TempDir(), "clean.csv")

	stdout, err := execute(t, "apply", in, "--op", "rename_column", "--params", `{"old_name":"age","new_name":"years"}`, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote 2 rows x 2 columns")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "name,years\nAnn,30\nBob,10\n", string(data))
}

func TestApplyRequiresOperation(t *testing.T) {
	in := writeInput(t, "a\n1\n")
	_, err := execute(t, "apply", in)
	assert.Error(t, err)

	_, err = execute(t, "apply", in, "--op", "not_an_op")
	assert.Error(t, err)
}

func TestFormulaCommand(t *testing.T) {
	in := writeInput(t, "n\n1\n2\n3\n4\n")

	stdout, err := execute(t, "formula", in, "SUM", "n", "--rows", "2:3")
	require.NoError(t, err)
	assert.Equal(t, "SUM(n) over 2 rows = 5\n", stdout)

	_, err = execute(t, "formula", in, "SUM", "n", "--rows", "2-3")
	assert.Error(t, err)
}

func TestParseRows(t *testing.T) {
	a, b, err := parseRows("")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Nil(t, b)

	a, b, err = parseRows(" 5: ")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 5, *a)
	assert.Nil(t, b)

	_, _, err = parseRows("x:2")
	assert.Error(t, err)
}

func TestStatsAndOutliersCommands(t *testing.T) {
	in := writeInput(t, "name,score\nAnn,1\nBob,2\nCid,3\nDee,4\n")

	stdout, err := execute(t, "stats", in, "score")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"Mean": 2.5`)

	stdout, err = execute(t, "outliers", in)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"score"`)

	textOnly := writeInput(t, "name\nAnn\nBob\n")
	stdout, err = execute(t, "outliers", textOnly)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No numeric columns")
}

func TestOperationsCommandListsNames(t *testing.T) {
	stdout, err := execute(t, "operations")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rename_column")
	assert.Contains(t, stdout, "remove_duplicates")
}
