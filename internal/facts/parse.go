// Package facts reads the borrow checker's fact stream: a directory of
// "<relation>.facts" files as written by rustc -Znll-facts, one tuple per
// line, tab separated, each field double quoted.
//
// Only the relations the dataflow analysis needs are loaded. Points are
// mapped to ir.Location; the Start and Mid halves of a statement share one
// location.
package facts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Relation names, which double as file names without the ".facts" suffix.
const (
	RelLoanIssuedAt      = "loan_issued_at"
	RelLoanKilledAt      = "loan_killed_at"
	RelLoanInvalidatedAt = "loan_invalidated_at"
	RelCFGEdge           = "cfg_edge"
	RelLoanLiveAt        = "loan_live_at"
)

// arity of each relation this package reads.
var arity = map[string]int{
	RelLoanIssuedAt:      3,
	RelLoanKilledAt:      2,
	RelLoanInvalidatedAt: 2,
	RelCFGEdge:           2,
	RelLoanLiveAt:        2,
}

// ParseError reports a malformed facts file.
type ParseError struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ParseRelation reads the tuples of one relation from r. name is used in
// error messages only.
func ParseRelation(name string, want int, r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = want
	cr.ReuseRecord = false

	var tuples [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return tuples, nil
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
				err = pe.Err
			}
			return nil, &ParseError{File: name, Line: line, Message: err.Error()}
		}
		tuples = append(tuples, rec)
	}
}

// readRelation loads dir/<rel>.facts. A missing file yields no tuples and
// found == false.
func readRelation(dir, rel string) (tuples [][]string, found bool, err error) {
	path := filepath.Join(dir, rel+".facts")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	tuples, err = ParseRelation(path, arity[rel], f)
	if err != nil {
		return nil, true, err
	}
	return tuples, true, nil
}
