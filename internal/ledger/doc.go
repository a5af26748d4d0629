// Package ledger persists organization run history in SQLite: one row per
// client version plus a small settings table for last-used paths. The ledger
// is the source of truth for fresh/rerun/resume decisions.
package ledger
