// Package records persists Draft Records in the local store.
//
// Repository is implemented by SQLiteRepository over a dbx.DBTX, so the same
// code runs against *sql.DB or inside a store transaction. Timestamps are
// stored as unix milliseconds.
package records
