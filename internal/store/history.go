package store

import (
	"context"
	"fmt"
)

// ChangeKind classifies a difference between two runs.
type ChangeKind string

const (
	ChangeModified ChangeKind = "modified" // both runs have the point, with different places
	ChangeAdded    ChangeKind = "added"    // only the new run has the point
	ChangeRemoved  ChangeKind = "removed"  // only the old run has the point
)

// StateChange is one point state that differs between two runs. Old is
// nil for added points and New is nil for removed ones.
type StateChange struct {
	Kind     ChangeKind   `json:"kind"`
	Function string       `json:"function"`
	Location string       `json:"location"`
	State    string       `json:"state"`
	Old      *StoredState `json:"old,omitempty"`
	New      *StoredState `json:"new,omitempty"`
}

// DiffRuns compares the point states of two runs by function, location
// and state kind, using the stored digests. Modified and added points are
// listed in the new run's order, then removed points in the old run's
// order. Returns sql.ErrNoRows if either run does not exist.
func (s *Store) DiffRuns(ctx context.Context, oldID, newID string) ([]StateChange, error) {
	for _, id := range []string{oldID, newID} {
		if _, err := s.ReadRunInfo(ctx, id); err != nil {
			return nil, fmt.Errorf("diff runs: %w", err)
		}
	}

	older, err := s.ReadPointStates(ctx, PointFilter{RunID: oldID})
	if err != nil {
		return nil, fmt.Errorf("diff runs: %w", err)
	}
	newer, err := s.ReadPointStates(ctx, PointFilter{RunID: newID})
	if err != nil {
		return nil, fmt.Errorf("diff runs: %w", err)
	}

	type key struct{ fn, loc, state string }
	keyOf := func(st StoredState) key { return key{st.Function, st.Location.String(), st.State} }

	byKey := make(map[key]*StoredState, len(older))
	for i := range older {
		byKey[keyOf(older[i])] = &older[i]
	}

	changes := []StateChange{}
	seen := make(map[key]bool, len(newer))
	for i := range newer {
		n := &newer[i]
		k := keyOf(*n)
		seen[k] = true
		o, ok := byKey[k]
		switch {
		case !ok:
			changes = append(changes, StateChange{Kind: ChangeAdded, Function: k.fn, Location: k.loc, State: k.state, New: n})
		case o.Digest != n.Digest:
			changes = append(changes, StateChange{Kind: ChangeModified, Function: k.fn, Location: k.loc, State: k.state, Old: o, New: n})
		}
	}
	for i := range older {
		o := &older[i]
		if k := keyOf(*o); !seen[k] {
			changes = append(changes, StateChange{Kind: ChangeRemoved, Function: k.fn, Location: k.loc, State: k.state, Old: o})
		}
	}
	return changes, nil
}
