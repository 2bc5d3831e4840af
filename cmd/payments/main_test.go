package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/store/sqlite"
)

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_PrintsAccounts(t *testing.T) {
	input := writeInput(t, "type,client,tx,amount\n"+
		"deposit,1,1,1.0\n"+
		"deposit,2,2,2.0\n"+
		"deposit,1,3,2.0\n"+
		"withdrawal,1,4,1.5\n"+
		"withdrawal,2,5,3.0\n")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-log-level=error", input}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "client,available,held,total,locked\n"+
		"1,1.5000,0.0000,1.5000,false\n"+
		"2,2.0000,0.0000,2.0000,false\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRun_LogsGoToStderr(t *testing.T) {
	input := writeInput(t, "deposit,1,1,1\nbogus,1,2,1\n")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{input}, &stdout, &stderr))

	assert.Contains(t, stderr.String(), "skipping malformed row")
	assert.NotContains(t, stdout.String(), "skipping")
}

func TestRun_SavesReport(t *testing.T) {
	input := writeInput(t, "deposit,1,1,1\n")
	db := filepath.Join(t.TempDir(), "runs.db")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-db", db, input}, &stdout, &stderr))

	store, err := sqlite.New(db)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "transactions.csv", runs[0].Source)
}

func TestRun_UsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), nil, &stdout, &stderr)
	assert.ErrorIs(t, err, errUsage)

	err = run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.csv")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")
}
