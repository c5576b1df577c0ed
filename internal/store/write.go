package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteRun inserts run with its specializations and blocks in one
// transaction. An empty run.ID is filled from the store's IDGenerator; Seq
// is always assigned here.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing a run whose ID
// already exists leaves the stored run untouched and returns nil.
func (s *Store) WriteRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return fmt.Errorf("write run: %w", err)
		}
		run.ID = id
	}
	argsJSON, err := marshalArgs(run.Args)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	optsJSON, err := marshalOptions(run.Options)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return fmt.Errorf("write run: next seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, source, program_hash, entry, args, options, steps, status, outcome, error_code, error_message, assembled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		seq,
		run.Source,
		run.ProgramHash,
		run.Entry,
		argsJSON,
		optsJSON,
		run.Steps,
		run.Status,
		run.Outcome,
		run.ErrorCode,
		run.ErrorMessage,
		run.Assembled,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write run: %w", err)
	} else if n == 0 {
		return nil
	}

	for _, sp := range run.Specializations {
		if err := writeSpecialization(ctx, tx, run.ID, sp); err != nil {
			return fmt.Errorf("write run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	run.Seq = seq
	return nil
}

func writeSpecialization(ctx context.Context, tx *sql.Tx, runID string, sp Specialization) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO specializations
		(run_id, seq, function, assembled_name, signature, signature_hash, state, outcome, outcome_hash, iterations, tentative)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		sp.Seq,
		sp.Function,
		sp.AssembledName,
		sp.Signature,
		sp.SignatureHash,
		sp.State,
		sp.Outcome,
		sp.OutcomeHash,
		sp.Iterations,
		sp.Tentative,
	)
	if err != nil {
		return fmt.Errorf("specialization %d: %w", sp.Seq, err)
	}

	for _, b := range sp.Blocks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (run_id, spec, block, params, exit, visits)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, sp.Seq, b.Block, b.Params, b.Exit, b.Visits)
		if err != nil {
			return fmt.Errorf("block %s of specialization %d: %w", b.Block, sp.Seq, err)
		}
	}
	return nil
}

// DeleteRun removes a run and everything recorded under it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrNotFound)
	}
	return nil
}
