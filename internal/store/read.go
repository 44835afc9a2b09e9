package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/mirdump/internal/analysis"
	"github.com/roach88/mirdump/internal/ir"
	"github.com/roach88/mirdump/internal/queryir"
)

// Schema lists the tables and columns reads may reference.
var Schema = queryir.Schema{
	"runs":           {"id", "seq", "ir_version", "analyzer_version"},
	"results":        {"id", "run_id", "function", "body_hash", "seq", "visits"},
	"point_states":   {"id", "run_id", "function", "body_hash", "seq", "location", "state", "places", "digest"},
	"skipped_places": {"id", "run_id", "function", "place", "reason", "seq"},
}

// RunInfo describes a stored run.
type RunInfo struct {
	ID              string `json:"id"`
	Seq             int64  `json:"seq"`
	IRVersion       string `json:"ir_version"`
	AnalyzerVersion string `json:"analyzer_version"`
}

// StoredState is one point state row: the places of one state kind at one
// program point.
type StoredState struct {
	ID       int64       `json:"id"`
	RunID    string      `json:"run_id"`
	Function string      `json:"function"`
	BodyHash string      `json:"body_hash"`
	Seq      int64       `json:"seq"`
	Location ir.Location `json:"location"`
	State    string      `json:"state"`
	Places   []ir.Place  `json:"places"`
	Digest   string      `json:"digest"`
}

// PointFilter narrows ReadPointStates. Zero fields do not filter.
type PointFilter struct {
	RunID    string
	Function string
	States   []string
	Location *ir.Location
}

// Query builds the QueryIR for the filter.
func (f PointFilter) Query() queryir.Select {
	var preds []queryir.Predicate
	if f.RunID != "" {
		preds = append(preds, queryir.Equals{Column: "run_id", Value: f.RunID})
	}
	if f.Function != "" {
		preds = append(preds, queryir.Equals{Column: "function", Value: f.Function})
	}
	if len(f.States) > 0 {
		vals := make([]queryir.Value, len(f.States))
		for i, s := range f.States {
			vals[i] = s
		}
		preds = append(preds, queryir.In{Column: "state", Values: vals})
	}
	if f.Location != nil {
		preds = append(preds, queryir.Equals{Column: "location", Value: f.Location.String()})
	}
	return queryir.Select{
		From:    "point_states",
		Columns: []string{"id", "run_id", "function", "body_hash", "seq", "location", "state", "places", "digest"},
		Filter:  queryir.Where(preds...),
	}
}

// query compiles q and calls scan for every row.
func (s *Store) query(ctx context.Context, q queryir.Query, scan func(*sql.Rows) error) error {
	sqlText, params, err := s.sql.Compile(q)
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

// ReadPointStates returns the point states matching f, ordered by seq then
// id. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadPointStates(ctx context.Context, f PointFilter) ([]StoredState, error) {
	states := []StoredState{}
	err := s.query(ctx, f.Query(), func(rows *sql.Rows) error {
		st, err := scanPointState(rows)
		if err != nil {
			return err
		}
		states = append(states, st)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read point states: %w", err)
	}
	return states, nil
}

func scanPointState(rows *sql.Rows) (StoredState, error) {
	var st StoredState
	var loc, placesJSON string
	if err := rows.Scan(&st.ID, &st.RunID, &st.Function, &st.BodyHash, &st.Seq, &loc, &st.State, &placesJSON, &st.Digest); err != nil {
		return StoredState{}, fmt.Errorf("scan point state: %w", err)
	}
	var err error
	if st.Location, err = ir.ParseLocation(loc); err != nil {
		return StoredState{}, fmt.Errorf("scan point state %d: %w", st.ID, err)
	}
	if st.Places, err = unmarshalPlaces(placesJSON); err != nil {
		return StoredState{}, fmt.Errorf("scan point state %d: %w", st.ID, err)
	}
	return st, nil
}

// ListRuns returns every stored run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	return s.readRuns(ctx, nil)
}

// ReadRunInfo retrieves a run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRunInfo(ctx context.Context, id string) (RunInfo, error) {
	runs, err := s.readRuns(ctx, queryir.Equals{Column: "id", Value: id})
	if err != nil {
		return RunInfo{}, err
	}
	if len(runs) == 0 {
		return RunInfo{}, fmt.Errorf("run %s: %w", id, sql.ErrNoRows)
	}
	return runs[0], nil
}

// LatestRun returns the most recently written run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (RunInfo, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return RunInfo{}, err
	}
	if len(runs) == 0 {
		return RunInfo{}, fmt.Errorf("latest run: %w", sql.ErrNoRows)
	}
	return runs[len(runs)-1], nil
}

func (s *Store) readRuns(ctx context.Context, filter queryir.Predicate) ([]RunInfo, error) {
	runs := []RunInfo{}
	q := queryir.Select{
		From:    "runs",
		Columns: []string{"id", "seq", "ir_version", "analyzer_version"},
		Filter:  filter,
	}
	err := s.query(ctx, q, func(rows *sql.Rows) error {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.Seq, &r.IRVersion, &r.AnalyzerVersion); err != nil {
			return fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return runs, nil
}

// ListFunctions returns the functions analyzed in a run, in run order.
func (s *Store) ListFunctions(ctx context.Context, runID string) ([]string, error) {
	fns := []string{}
	q := queryir.Select{
		From:    "results",
		Columns: []string{"function"},
		Filter:  queryir.Equals{Column: "run_id", Value: runID},
	}
	err := s.query(ctx, q, func(rows *sql.Rows) error {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return fmt.Errorf("scan function: %w", err)
		}
		fns = append(fns, fn)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	return fns, nil
}

// ReadRun reassembles a stored run. Results come back in run order and each
// result's points in seq order, so ReadRun(WriteRun(r)) equals r.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (*analysis.Run, error) {
	info, err := s.ReadRunInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	run := &analysis.Run{
		ID:              info.ID,
		IRVersion:       info.IRVersion,
		AnalyzerVersion: info.AnalyzerVersion,
		Results:         []analysis.Result{},
	}

	index := make(map[string]int)
	q := queryir.Select{
		From:    "results",
		Columns: []string{"function", "body_hash", "visits"},
		Filter:  queryir.Equals{Column: "run_id", Value: id},
	}
	err = s.query(ctx, q, func(rows *sql.Rows) error {
		var res analysis.Result
		if err := rows.Scan(&res.Function, &res.BodyHash, &res.Visits); err != nil {
			return fmt.Errorf("scan result: %w", err)
		}
		index[res.Function] = len(run.Results)
		run.Results = append(run.Results, res)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	states, err := s.ReadPointStates(ctx, PointFilter{RunID: id})
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	for _, st := range states {
		i, ok := index[st.Function]
		if !ok {
			return nil, fmt.Errorf("read run %s: point state %d for unknown function %s", id, st.ID, st.Function)
		}
		res := &run.Results[i]
		n := len(res.Points)
		if n == 0 || res.Points[n-1].Seq != st.Seq {
			res.Points = append(res.Points, analysis.PointState{Seq: st.Seq, Location: st.Location})
			n++
		}
		p := &res.Points[n-1]
		switch st.State {
		case analysis.StateInitialized:
			p.Initialized = st.Places
		case analysis.StateMovedOut:
			p.MovedOut = st.Places
		case analysis.StateBorrowed:
			p.Borrowed = st.Places
		}
	}

	skipped, err := s.ReadSkipped(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	for fn, places := range skipped {
		if i, ok := index[fn]; ok {
			run.Results[i].Skipped = places
		}
	}
	return run, nil
}

// ReadSkipped returns, per function, the places a run could not refine and
// why.
func (s *Store) ReadSkipped(ctx context.Context, runID string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	q := queryir.Select{
		From:    "skipped_places",
		Columns: []string{"function", "place", "reason"},
		Filter:  queryir.Equals{Column: "run_id", Value: runID},
	}
	err := s.query(ctx, q, func(rows *sql.Rows) error {
		var fn, place, reason string
		if err := rows.Scan(&fn, &place, &reason); err != nil {
			return fmt.Errorf("scan skipped place: %w", err)
		}
		if out[fn] == nil {
			out[fn] = make(map[string]string)
		}
		out[fn][place] = reason
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read skipped places: %w", err)
	}
	return out, nil
}
