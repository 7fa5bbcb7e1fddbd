// Package cli provides the interactive PraxisDoku command-line client.
//
// It wires configuration, the local SQLite database, the encrypted vault
// and the Befund case service into a read–eval–print loop. Typical flow:
// unlock the vault with the passphrase, manage patients and their
// documents, export a backup, lock.
//
// Befund cases are kept outside the vault and can be used while it is
// locked.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
