package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is a program point: the Statement-th statement of basic block
// Block. Statement == len(block.Statements) addresses the terminator.
type Location struct {
	Block     int `json:"block"`
	Statement int `json:"statement"`
}

// String renders the location as bb<block>[<statement>].
func (l Location) String() string {
	return fmt.Sprintf("bb%d[%d]", l.Block, l.Statement)
}

// Less orders locations by block, then statement.
func (l Location) Less(o Location) bool {
	if l.Block != o.Block {
		return l.Block < o.Block
	}
	return l.Statement < o.Statement
}

// ParseLocation parses "bb0[1]". The fact-stream forms "Start(bb0[1])" and
// "Mid(bb0[1])" are accepted and map to the same location.
func ParseLocation(s string) (Location, error) {
	inner := strings.TrimSpace(s)
	for _, wrap := range []string{"Start(", "Mid("} {
		if strings.HasPrefix(inner, wrap) && strings.HasSuffix(inner, ")") {
			inner = inner[len(wrap) : len(inner)-1]
			break
		}
	}
	body, ok := strings.CutPrefix(inner, "bb")
	if !ok || !strings.HasSuffix(body, "]") {
		return Location{}, fmt.Errorf("invalid location %q: want bb<N>[<M>]", s)
	}
	blockStr, stmtStr, ok := strings.Cut(strings.TrimSuffix(body, "]"), "[")
	if !ok {
		return Location{}, fmt.Errorf("invalid location %q: want bb<N>[<M>]", s)
	}
	block, err := strconv.Atoi(blockStr)
	if err != nil || block < 0 {
		return Location{}, fmt.Errorf("invalid location %q: bad block index", s)
	}
	stmt, err := strconv.Atoi(stmtStr)
	if err != nil || stmt < 0 {
		return Location{}, fmt.Errorf("invalid location %q: bad statement index", s)
	}
	loc := Location{Block: block, Statement: stmt}
	return loc, nil
}
