package app

import (
	"context"
	"testing"

	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeError, Classify(nil))
	assert.Equal(t, OutcomeError, Classify(&database.QueryResult{Err: "boom", Columns: []string{"x"}}))
	assert.Equal(t, OutcomeTable, Classify(&database.QueryResult{Columns: []string{"id"}}))
	assert.Equal(t, OutcomeDML, Classify(&database.QueryResult{RowCount: 3}))
}

func TestPipeline_OneInFlight(t *testing.T) {
	f := newFakeSession()
	f.gate = make(chan struct{})
	f.results["SELECT 1"] = &database.QueryResult{Columns: []string{"?column?"}, Rows: []database.Row{{"?column?": int64(1)}}, RowCount: 1}
	p := NewPipeline(f)
	ctx := context.Background()

	fut, err := p.Start(ctx, "SELECT 1", database.TableRef{})
	require.NoError(t, err)
	assert.True(t, p.Busy())

	_, err = p.Start(ctx, "SELECT 2", database.TableRef{})
	assert.ErrorIs(t, err, ErrQueryInFlight, "a second request is rejected, not queued")

	close(f.gate)
	out, ok := fut.Await()
	require.True(t, ok)
	assert.Equal(t, OutcomeTable, out.Kind)
	assert.Equal(t, int64(1), out.Result.RowCount)

	_, ok = fut.Await()
	assert.False(t, ok, "an outcome is delivered once")

	assert.True(t, p.Busy(), "the gate is held until the outcome is applied")
	p.Release()
	assert.False(t, p.Busy())

	f.gate = nil
	_, err = p.Start(ctx, "SELECT 1", database.TableRef{})
	assert.NoError(t, err)
}

func TestPipeline_ErrorOutcome(t *testing.T) {
	f := newFakeSession()
	f.results["SELEC 1"] = &database.QueryResult{Err: `syntax error at or near "SELEC"`}
	p := NewPipeline(f)

	fut, err := p.Start(context.Background(), "SELEC 1", database.TableRef{})
	require.NoError(t, err)
	out, _ := fut.Await()

	assert.Equal(t, OutcomeError, out.Kind)
	var qerr *ErrQuery
	require.ErrorAs(t, out.Err, &qerr)
	assert.Equal(t, "SELEC 1", qerr.Query)
	assert.Contains(t, out.Err.Error(), "syntax error")
}

func TestPipeline_RunsDetachedFromCallerContext(t *testing.T) {
	f := newFakeSession()
	f.results["SELECT 1"] = &database.QueryResult{Columns: []string{"x"}}
	p := NewPipeline(f)

	ctx, cancel := context.WithCancel(context.Background())
	fut, err := p.Start(ctx, "SELECT 1", database.TableRef{})
	require.NoError(t, err)
	cancel()

	out, ok := fut.Await()
	require.True(t, ok)
	assert.Equal(t, OutcomeTable, out.Kind)
}
