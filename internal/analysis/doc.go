// Package analysis implements the flow-sensitive analysis that drives the
// place algebra: for every program point of a body it computes which places
// are definitely initialized, which may have been moved out, and which are
// borrowed by a live loan.
//
// ARCHITECTURE:
//
// Forward dataflow over the body's CFG. A FIFO worklist seeded with every
// block in index order is drained until no block's exit state changes.
// Block entry states are joined from the visited predecessors: initialized
// places by intersection, moved-out places by union. Every mutation goes
// through places.Normalizer, so sets are refined only as far as a move or
// assignment requires and collapsed back as soon as siblings agree.
//
// Borrowed places come from the fact stream: each loan live at a point is
// traced to the ref assignment that issued it.
//
// DETERMINISM:
//
// Point states are stamped with a logical Clock in IR order, never with
// wall-clock time. AnalyzeAll runs bodies in parallel but stamps seq numbers
// in input order after all bodies finish, so a run is reproducible.
//
// UNSUPPORTED TYPES:
//
// A place the oracle cannot classify is skipped with a warning and a sound
// fallback (a must set forgets the covering ancestor, a may set keeps it).
// WithStrict(true) turns the first such place into an ErrCodeUnsupportedType
// error instead.
package analysis
