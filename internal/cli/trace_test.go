package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tppenforce/internal/ir"
)

// journaledDB returns a database holding run-0001 (gemm) and run-0002 (chain).
func journaledDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	enforceToDB(t, dbPath, "gemm", "chain")
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No runs found.")
}

func TestTraceListRuns(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "run-0001 gemm: Rewritten")
	assert.Contains(t, output, "run-0002 chain: Rewritten")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("run-0001")), bytes.Index(buf.Bytes(), []byte("run-0002")),
		"runs are listed oldest first")
}

func TestTraceListRunsForFunctionJSON(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--function", "chain"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string       `json:"status"`
		Data   []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "run-0002", resp.Data[0].ID)
	assert.Equal(t, "chain", resp.Data[0].Function)
	assert.True(t, resp.Data[0].Converged)
	assert.True(t, resp.Data[0].Changed)
}

func TestTraceRun(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"run-0001", "--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Trace for Run: run-0001")
	assert.Contains(t, output, "Function: gemm")
	assert.Contains(t, output, "=== Timeline ===")
	assert.Contains(t, output, "iteration 1: align-contraction on contraction node")
	assert.Contains(t, output, "fold-pad-chain on pad node")
	assert.Contains(t, output, "=== Patterns ===")
	assert.Contains(t, output, "Total Rewrites: 2")
	assert.Contains(t, output, "ir "+ir.IRVersion+", pass "+ir.PassVersion)
	assert.NotContains(t, output, "=== Input ===", "printed IR is verbose only")
}

func TestTraceRunVerbose(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"run-0002", "--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "created: [")
	assert.Contains(t, output, "=== Input ===")
	assert.Contains(t, output, "high[0, 13]")
	assert.Contains(t, output, "=== Output ===")
	assert.Contains(t, output, "high[3, 13]")
}

func TestTraceRunJSON(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"run-0001", "--db", dbPath})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	result := resp.Data
	assert.Equal(t, "gemm", result.Run.Function)
	require.Len(t, result.Timeline, 2)
	assert.Equal(t, "align-contraction", result.Timeline[0].Pattern)
	assert.Equal(t, "contraction", result.Timeline[0].RootKind)
	assert.Len(t, result.Timeline[0].Created, 8)
	assert.Less(t, result.Timeline[0].Seq, result.Timeline[1].Seq)
	assert.Less(t, result.Timeline[1].Seq, result.Run.Seq, "the run is stamped after its rewrites")

	assert.Equal(t, 2, result.Stats.TotalRewrites)
	assert.NotEqual(t, result.Stats.InputHash, result.Stats.OutputHash)
	assert.Contains(t, result.OutputIR, "extract")
}

func TestTraceRunPatternFilter(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"run-0001", "--db", dbPath, "--pattern", "fold-pad-chain"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "fold-pad-chain", resp.Data.Timeline[0].Pattern)
	assert.Equal(t, 2, resp.Data.Stats.TotalRewrites, "stats cover the whole run")
}

func TestTraceRunNotFound(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"run-9999", "--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]: run not found: run-9999")
}

func TestTraceSeqResumesAcrossInvocations(t *testing.T) {
	dbPath := journaledDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Less(t, resp.Data[0].Seq, resp.Data[1].Seq)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "run-0001", truncateID("run-0001"))
	assert.Equal(t, "0190a6c2...9f3e1a2b", truncateID("0190a6c2-7d4e-7a1b-8c3d-5e6f9f3e1a2b"))
}

func TestFormatNodes(t *testing.T) {
	assert.Equal(t, "[]", formatNodes(nil))
	assert.Equal(t, "[3, 4, 7]", formatNodes([]int64{3, 4, 7}))
}

func TestStatusHelpers(t *testing.T) {
	assert.Equal(t, "Rewritten", changedStatus(true))
	assert.Equal(t, "Unchanged", changedStatus(false))
	assert.Equal(t, "", convergedSuffix(true))
	assert.Equal(t, " (stopped at iteration cap)", convergedSuffix(false))
}
