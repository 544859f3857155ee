// Package lifecycle moves tarballs through the ingestion lifecycle:
//
//	new → staged → review_requested → approved → ingested
//	                               ↘ rejected
//
// A tarball's state is the top-level prefix of its metadata object in the
// object store. The review repository mirrors that layout on the tarball's
// branch and on main, and doubles as an audit trail.
//
// Core types:
//   - Record: one tarball as seen in the current run
//   - Cache: per-run memo of review-host lookups
//   - Machine: runs the handler for a record's state
//   - Installer: the external program that publishes a verified tarball
//
// Each handler performs at most one transition. A transition is recorded in
// two systems that fail independently, so it is done in two phases: the
// review repository is updated first on a best-effort basis, then the store
// copy is confirmed by ETag before the original is deleted. Only the store
// decides whether a transition happened; every phase is safe to repeat.
//
// Example usage:
//
//	m, err := lifecycle.New(lifecycle.Config{
//	    Store:     s3,
//	    Provider:  provider,
//	    Mirror:    mirror,
//	    Installer: lifecycle.NewExecInstaller(script, true, "sudo"),
//	    Messages:  message.NewRenderer(cfg.MessageTemplates()),
//	})
//	rec := lifecycle.NewRecord(ctx, sources, payloadKey, lifecycle.StateNew, obj)
//	rec, err = m.Run(ctx, rec)
package lifecycle
