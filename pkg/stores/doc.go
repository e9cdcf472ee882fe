// Package stores persists the run journal of froyo-git.
//
// SQLiteStore keeps runs, their steps and the event timeline in a SQLite
// database (pure Go driver, WAL mode) whose schema is managed with embedded
// golang-migrate migrations. It implements engine.Journal, so an executor
// records every run by setting ExecContext.Journal, and EventSubscriber
// copies published telemetry events into the same database.
package stores
