package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/mirdump/internal/analysis"
)

// WriteRun stores a run with all its results, point states and skipped
// places in one transaction. The run's seq is one past the highest stored
// run.
//
// Uses ON CONFLICT DO NOTHING throughout: writing the same run twice is a
// no-op, and inserted reports whether this call created it.
func (s *Store) WriteRun(ctx context.Context, run *analysis.Run) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return false, fmt.Errorf("write run: next seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, ir_version, analyzer_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, seq, run.IRVersion, run.AnalyzerVersion)
	if err != nil {
		return false, fmt.Errorf("write run: insert run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if n == 0 {
		// Already stored; results are immutable once written.
		return false, nil
	}

	for i, result := range run.Results {
		if err := writeResult(ctx, tx, run.ID, int64(i+1), result); err != nil {
			return false, fmt.Errorf("write run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

func writeResult(ctx context.Context, tx *sql.Tx, runID string, seq int64, result analysis.Result) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (run_id, function, body_hash, seq, visits)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, function) DO NOTHING
	`, runID, result.Function, result.BodyHash, seq, result.Visits); err != nil {
		return fmt.Errorf("insert result %s: %w", result.Function, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO point_states (run_id, function, body_hash, seq, location, state, places, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, function, seq, state) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare point states: %w", err)
	}
	defer stmt.Close()

	for _, point := range result.Points {
		for _, kind := range analysis.StateKinds {
			places := point.Places(kind)
			placesJSON, err := marshalPlaces(places)
			if err != nil {
				return err
			}
			digest, err := placesDigest(places)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				runID,
				result.Function,
				result.BodyHash,
				point.Seq,
				point.Location.String(),
				kind,
				placesJSON,
				digest,
			); err != nil {
				return fmt.Errorf("insert point state %s %s %s: %w", result.Function, point.Location, kind, err)
			}
		}
	}

	// Map iteration order is random; store skipped places sorted.
	names := make([]string, 0, len(result.Skipped))
	for name := range result.Skipped {
		names = append(names, name)
	}
	slices.Sort(names)
	for i, name := range names {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO skipped_places (run_id, function, place, reason, seq)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, function, place) DO NOTHING
		`, runID, result.Function, name, result.Skipped[name], int64(i+1)); err != nil {
			return fmt.Errorf("insert skipped place %s: %w", name, err)
		}
	}
	return nil
}
