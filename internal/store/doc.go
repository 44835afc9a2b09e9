// Package store provides SQLite-backed durable storage for analysis runs.
//
// A run is written once and never modified:
//   - runs: one row per AnalyzeAll call, ordered by a store-assigned seq
//   - results: one row per analyzed body (body hash, visit count)
//   - point_states: one row per program point and state kind, holding the
//     place set as canonical JSON plus its content digest
//   - skipped_places: places the analysis could not refine, with the reason
//
// # Critical Patterns
//
// Idempotent writes
//   - WriteRun runs in one transaction with ON CONFLICT DO NOTHING
//   - Writing the same run id twice leaves the first write untouched
//
// Logical identity and time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Point state seq numbers come from the analysis, so reads replay the
//     run in IR order
//
// Deterministic query results
//   - Reads go through queryir and querysql, which always append
//     ORDER BY seq ASC, id COLLATE BINARY ASC
//   - Identifiers are checked against Schema before they reach SQL
//
// # Database Configuration
//
// Open sets journal_mode=WAL, synchronous=NORMAL, busy_timeout=5000 and
// foreign_keys=ON, then reads each one back. Schema changes after
// schema.sql are numbered migrations tracked in PRAGMA user_version; a
// database from a newer mirdump is refused.
//
// Place set digests are computed by ir.PlaceSetDigest, so two stored sets
// with the same digest hold the same places.
package store
