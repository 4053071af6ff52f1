// Package ledger records packaging runs in a local SQLite database so
// operators can see what ran, when, and how it ended.
//
// The ledger is advisory: the pipeline never reads it to decide what to do,
// and a run whose ledger write fails still completes.
package ledger
