// Package kv provides the key/value store PraxisDoku persists its records
// in: the encrypted vault envelope and the plain Befund cases and draft.
//
// SQLiteRepository works on any dbx.DBTX, so it can run inside a
// transaction started with dbx.WithTx. MemoryRepository keeps everything in
// process memory.
package kv
