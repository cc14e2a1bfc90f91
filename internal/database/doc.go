// Package database provides SQLite-based storage for audit history.
//
// Finished site reports are persisted as JSON alongside a small
// severity summary, so past audits can be listed and compared without
// re-running them. The schema is created on open and the package owns
// the connection lifecycle.
package database
