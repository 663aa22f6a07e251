package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/joacominatel/pgkksql/internal/logger"
)

// OutcomeKind classifies a finished query.
type OutcomeKind int

const (
	// OutcomeError means the statement failed; no rows are kept.
	OutcomeError OutcomeKind = iota
	// OutcomeTable means the statement returned a row description.
	OutcomeTable
	// OutcomeDML means the statement returned only an affected row count.
	OutcomeDML
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTable:
		return "table"
	case OutcomeDML:
		return "dml"
	default:
		return "error"
	}
}

// Classify decides how a result is presented.
func Classify(r *database.QueryResult) OutcomeKind {
	switch {
	case r == nil || r.Failed():
		return OutcomeError
	case r.HasColumns():
		return OutcomeTable
	default:
		return OutcomeDML
	}
}

// Outcome is what a worker hands back to the UI loop.
type Outcome struct {
	Kind   OutcomeKind
	Query  string
	Result *database.QueryResult
	// Ref is the table the query was attributed to before primary keys are
	// looked up. Zero when none was given or resolved.
	Ref database.TableRef
	// Err wraps Result.Err for error outcomes.
	Err error
}

// Future delivers one Outcome. The first Await returns it; later calls
// return false immediately.
type Future struct {
	ch <-chan Outcome
}

// Await blocks until the worker has finished.
func (f *Future) Await() (Outcome, bool) {
	out, ok := <-f.ch
	return out, ok
}

// Pipeline runs at most one query at a time on a worker goroutine.
type Pipeline struct {
	session database.Session
	busy    atomic.Bool
}

// NewPipeline creates a pipeline over session.
func NewPipeline(session database.Session) *Pipeline {
	return &Pipeline{session: session}
}

// Busy reports whether a query holds the gate.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Start acquires the gate and runs query on a new goroutine. The gate stays
// held until Release, so that the caller can finish reading metadata for the
// outcome before the session is handed to another query.
func (p *Pipeline) Start(ctx context.Context, query string, ref database.TableRef) (*Future, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrQueryInFlight
	}

	ch := make(chan Outcome, 1)
	// the query is never cancelled once dispatched
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(ch)
		start := time.Now()

		res := p.session.ExecuteQuery(ctx, query)
		out := Outcome{
			Kind:   Classify(res),
			Query:  query,
			Result: res,
			Ref:    ref,
		}
		if out.Kind == OutcomeError {
			msg := "query returned no result"
			if res != nil {
				msg = res.Err
			}
			out.Err = &ErrQuery{Query: query, Cause: errors.New(msg)}
		}

		logger.Debug("Query delivered", "kind", out.Kind.String(), "elapsed", time.Since(start))
		ch <- out
	}()

	return &Future{ch: ch}, nil
}

// Release frees the gate for the next query.
func (p *Pipeline) Release() {
	p.busy.Store(false)
}
