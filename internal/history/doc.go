// Package history records finished batches in a local SQLite database so
// past runs can be listed and inspected. It stores outcomes only and plays
// no part in resuming downloads.
package history
