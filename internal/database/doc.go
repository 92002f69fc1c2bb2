// Package database provides SQLite-based storage for jsfinder.
//
// ScriptDB stores:
//   - One row per discovery run, keyed by a random UUID, with the full
//     JSON report
//   - One row per confirmed script of each run
//
// The history command reads these tables to list past runs and to show
// which scripts appeared or disappeared between runs.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. The database is a single file in the XDG data directory
//  2. The CGO-free driver allows easy cross-compilation
//  3. WAL mode gives good concurrent read performance
package database
