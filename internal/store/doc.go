// Package store persists pipeline runs to SQLite or Postgres.
//
// A run is written once, in a single transaction:
//   - runs: one row per run with the prefer mode and input paths
//   - datasets: the field set of each merged kind
//   - records: every merged record as canonical JSON plus its hash
//
// Writes use ON CONFLICT DO NOTHING, so writing the same run twice is a
// no-op. Reads order records by seq, the position in the merged output.
//
// # Database Configuration
//
// SQLite databases run in WAL mode with synchronous=NORMAL, a 5 second
// busy timeout, and foreign keys on. Postgres is selected by a
// postgres:// or postgresql:// DSN and uses the pgx database/sql driver.
package store
