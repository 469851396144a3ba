// Package cli is the interactive tablescout client: a small REPL over the
// REST API that keeps its session in a local SQLite file between runs.
package cli
