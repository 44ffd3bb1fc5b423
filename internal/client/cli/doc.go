// Package cli provides the interactive fieldsync command-line client.
//
// It wires configuration, the local store, the remote adapter, the sync
// orchestrator and the auto-sync runner, then runs a REPL until the user
// exits. Everything typed into the REPL is stored locally first and reaches
// the server on the next sync run.
//
// Commands:
//   - new, edit, attach, comment  author drafts and queue comments
//   - list, status                inspect the local queue
//   - sync, retry, discard        drive the queue by hand
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
