package history

import (
	"context"
	"database/sql"
)

// writeJob is one unit of serialised work: fn runs inside a single
// transaction on the store's sole writer goroutine, and its result (or
// error) is delivered back over done. This is the "load-current,
// apply-patch, store, commit" serialisation point required for any update
// that touches results, so a full-record retry and concurrent
// single-backend retries for the same record can never interleave.
type writeJob struct {
	ctx  context.Context
	fn   func(ctx context.Context, tx *sql.Tx) error
	done chan error
}

// runWriter is the Store's sole writer goroutine. It drains s.writes
// strictly in arrival order until Close fires s.stopOnce.
func (s *Store) runWriter() {
	for {
		select {
		case <-s.stopOnce:
			return
		case job := <-s.writes:
			job.done <- s.runOne(job)
		}
	}
}

func (s *Store) runOne(job writeJob) error {
	tx, err := s.writeDB.BeginTx(job.ctx, nil)
	if err != nil {
		return err
	}

	if err := job.fn(job.ctx, tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// serializedWrite submits fn to the sole writer goroutine and blocks until
// it has committed (or failed). Reads never go through this path — only
// mutations that need the global serialisation guarantee.
func (s *Store) serializedWrite(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	done := make(chan error, 1)

	select {
	case s.writes <- writeJob{ctx: ctx, fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
