package nervous

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelworks/nervecenter/internal/journal"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region create-test
// TestDraft is the input to CreateTest.
type TestDraft struct {
	Name         string
	HypothesisID string
	TestType     record.TestType
	Metadata     map[string]any
}

// CreateTest appends version 1 of a new test and the hypothesis version
// that links back to it, as one batch: both lines land or neither does,
// so a test id never dangles off a hypothesis and vice versa.
func (s *System) CreateTest(d TestDraft) (record.TestObject, error) {
	if d.Name == "" {
		return record.TestObject{}, &ValidationError{Msg: "test name required"}
	}
	if d.TestType == "" {
		d.TestType = record.TestProcedural
	} else if _, err := record.ParseTestType(string(d.TestType)); err != nil {
		return record.TestObject{}, &ValidationError{Msg: err.Error()}
	}

	now := time.Now().UTC()
	to := record.TestObject{
		ID:           uuid.New().String(),
		Name:         d.Name,
		HypothesisID: d.HypothesisID,
		TestType:     d.TestType,
		Status:       record.StatusPending,
		Metadata:     d.Metadata,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The caller keeps its metadata map; the stored record must not share it.
	to = to.Clone()

	s.hypsMu.Lock()
	defer s.hypsMu.Unlock()

	hyp, ok := s.hyps[d.HypothesisID]
	if !ok {
		return record.TestObject{}, &NotFoundError{Kind: record.KindHypothesis, ID: d.HypothesisID}
	}

	linked := hyp.Clone()
	linked.LinkedTests = appendUnique(linked.LinkedTests, to.ID)
	linked.Version = hyp.Version + 1
	linked.UpdatedAt = now

	s.testsMu.Lock()
	defer s.testsMu.Unlock()

	_, err := s.jnl.AppendBatch([]journal.Pending{
		{Kind: record.KindTest, Record: to},
		{Kind: record.KindHypothesis, Record: linked},
	})
	if err != nil {
		return record.TestObject{}, err
	}
	s.tests[to.ID] = to
	s.hyps[hyp.ID] = linked
	return to.Clone(), nil
}
// #endregion create-test

// #region get-test
// GetTest returns the current record for a test id.
func (s *System) GetTest(id string) (record.TestObject, error) {
	s.testsMu.RLock()
	defer s.testsMu.RUnlock()

	to, ok := s.tests[id]
	if !ok {
		return record.TestObject{}, &NotFoundError{Kind: record.KindTest, ID: id}
	}
	return to.Clone(), nil
}
// #endregion get-test

// #region proc
// Outcome is the structured return of a test procedure.
type Outcome struct {
	Passed       bool
	Measurements map[string]any
	Observations []string
}

// Proc is a caller-supplied test procedure. It runs outside every registry
// lock; it may be arbitrarily slow caller code.
type Proc func(ctx context.Context) (Outcome, error)

// BoolProc wraps a procedure that reports only pass/fail.
func BoolProc(fn func(ctx context.Context) (bool, error)) Proc {
	return func(ctx context.Context) (Outcome, error) {
		passed, err := fn(ctx)
		return Outcome{Passed: passed}, err
	}
}
// #endregion proc

// #region execute
// ExecuteTest runs proc and records its outcome on the test's history.
// A procedure that returns an error, panics, or exceeds the configured
// timeout yields a result with status "error" and passed=false; execution
// failure is data to analyze, never a fault propagated to the caller.
func (s *System) ExecuteTest(ctx context.Context, id string, proc Proc) (record.TestResult, error) {
	// Existence check up front so a typo fails fast, before running
	// arbitrary caller code.
	if _, err := s.GetTest(id); err != nil {
		return record.TestResult{}, err
	}

	if s.testTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.testTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome, procErr := runProc(ctx, proc)
	elapsed := time.Since(start).Seconds()

	res := record.TestResult{
		Passed:          outcome.Passed,
		Status:          record.StatusPassed,
		Measurements:    outcome.Measurements,
		Observations:    outcome.Observations,
		DurationSeconds: elapsed,
		ExecutedAt:      time.Now().UTC(),
	}
	switch {
	case procErr != nil:
		res.Passed = false
		res.Status = record.StatusError
		res.ErrorMessage = procErr.Error()
	case !outcome.Passed:
		res.Status = record.StatusFailed
	}

	return s.RecordTestResult(id, res)
}

// runProc invokes the procedure with panic capture and a context bound.
// The result channel is buffered so an abandoned (timed-out) procedure
// does not leak a goroutine forever.
func runProc(ctx context.Context, proc Proc) (Outcome, error) {
	type procReturn struct {
		outcome Outcome
		err     error
	}
	done := make(chan procReturn, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- procReturn{err: fmt.Errorf("test procedure panic: %v", r)}
			}
		}()
		outcome, err := proc(ctx)
		done <- procReturn{outcome: outcome, err: err}
	}()

	select {
	case ret := <-done:
		return ret.outcome, ret.err
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("test procedure aborted: %w", ctx.Err())
	}
}
// #endregion execute

// #region record-result
// RecordTestResult appends a result to the test's history as a new test
// version and moves the test's overall status to the result's status.
func (s *System) RecordTestResult(id string, res record.TestResult) (record.TestResult, error) {
	if res.Status == "" {
		res.Status = record.StatusFailed
		if res.Passed {
			res.Status = record.StatusPassed
		}
	}
	if res.ExecutedAt.IsZero() {
		res.ExecutedAt = time.Now().UTC()
	}

	s.testsMu.Lock()
	defer s.testsMu.Unlock()

	cur, ok := s.tests[id]
	if !ok {
		return record.TestResult{}, &NotFoundError{Kind: record.KindTest, ID: id}
	}

	next := cur.Clone()
	// Store a copy: the caller keeps res and its measurement map.
	next.Results = append(next.Results, res.Clone())
	next.Status = res.Status
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()

	if _, err := s.jnl.Append(record.KindTest, next); err != nil {
		return record.TestResult{}, err
	}
	s.tests[id] = next
	return res, nil
}
// #endregion record-result
