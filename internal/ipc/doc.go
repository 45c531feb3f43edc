// Package ipc provides the JSON-RPC control surface between the CLI and
// the daemon, carried over a Unix domain socket. The exposed operations are
// job submission, status/stats queries, queue maintenance, database
// diagnostics, and discovery feedback.
package ipc
