// Package git provides exec-based Git operations for the review repository
// mirror: cloning, branch management, commits, renames, pushes and
// remote-ref inspection.
//
// Core types:
//   - Context: low-level git commands against one working tree
//   - Mirror: branch-scoped file operations used to record lifecycle moves
//   - CommandRunner: interface for executing git (with mocks for testing)
//
// Example usage:
//
//	m, err := git.OpenMirror("https://github.com/org/staging.git", "/srv/staging", "main")
//	if err := m.Sync("+refs/pull/*:refs/remotes/origin/pull/*"); err != nil {
//	    return err
//	}
//	moved, err := m.MoveFile("main", "approved/x.meta.txt", "ingested/x.meta.txt", "change state")
package git
