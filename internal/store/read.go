package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = `id, seq, source, program_hash, entry, args, options, steps, status, outcome, error_code, error_message, assembled`

// ReadRun returns the run with the given ID including its specializations
// and blocks. Returns an error wrapping ErrNotFound when no such run exists.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	specs, err := s.readSpecializations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	run.Specializations = specs
	return run, nil
}

// ListRuns returns every run without its specializations.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	return s.listRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC, id COLLATE BINARY ASC`)
}

// RunsForProgram returns the runs of the program with the given fingerprint
// (see ProgramHash), oldest first.
func (s *Store) RunsForProgram(ctx context.Context, programHash string) ([]*Run, error) {
	return s.listRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE program_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, programHash)
}

// LatestRun returns the most recent run of the program with the given
// fingerprint and entry function.
func (s *Store) LatestRun(ctx context.Context, programHash, entry string) (*Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs
		WHERE program_hash = ? AND entry = ?
		ORDER BY seq DESC
		LIMIT 1
	`, programHash, entry).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run of %s: %w", entry, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run of %s: %w", entry, err)
	}
	return s.ReadRun(ctx, id)
}

func (s *Store) listRuns(ctx context.Context, query string, args ...any) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) readSpecializations(ctx context.Context, runID string) ([]Specialization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, function, assembled_name, signature, signature_hash, state, outcome, outcome_hash, iterations, tentative
		FROM specializations
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query specializations: %w", err)
	}
	defer rows.Close()

	var specs []Specialization
	for rows.Next() {
		var sp Specialization
		if err := rows.Scan(
			&sp.Seq,
			&sp.Function,
			&sp.AssembledName,
			&sp.Signature,
			&sp.SignatureHash,
			&sp.State,
			&sp.Outcome,
			&sp.OutcomeHash,
			&sp.Iterations,
			&sp.Tentative,
		); err != nil {
			return nil, fmt.Errorf("scan specialization: %w", err)
		}
		specs = append(specs, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate specializations: %w", err)
	}
	rows.Close()

	for i := range specs {
		blocks, err := s.readBlocks(ctx, runID, specs[i].Seq)
		if err != nil {
			return nil, err
		}
		specs[i].Blocks = blocks
	}
	return specs, nil
}

func (s *Store) readBlocks(ctx context.Context, runID string, spec int) ([]BlockVisit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT block, params, exit, visits
		FROM blocks
		WHERE run_id = ? AND spec = ?
		ORDER BY CAST(SUBSTR(block, 2) AS INTEGER) ASC, block COLLATE BINARY ASC
	`, runID, spec)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var out []BlockVisit
	for rows.Next() {
		var b BlockVisit
		if err := rows.Scan(&b.Block, &b.Params, &b.Exit, &b.Visits); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run      Run
		argsJSON string
		optsJSON string
	)
	err := sc.Scan(
		&run.ID,
		&run.Seq,
		&run.Source,
		&run.ProgramHash,
		&run.Entry,
		&argsJSON,
		&optsJSON,
		&run.Steps,
		&run.Status,
		&run.Outcome,
		&run.ErrorCode,
		&run.ErrorMessage,
		&run.Assembled,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if run.Args, err = unmarshalArgs(argsJSON); err != nil {
		return nil, err
	}
	if run.Options, err = unmarshalOptions(optsJSON); err != nil {
		return nil, err
	}
	return &run, nil
}
