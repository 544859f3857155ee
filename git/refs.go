package git

import "strings"

// Ref is a remote-tracking ref and the commit it points at.
type Ref struct {
	Name   string // e.g. "my-tarball.tar.gz" or "pull/12/head"
	Commit string
}

// parseRefs parses "<sha> <refname>" lines, stripping prefix from names.
func parseRefs(out, prefix string) []Ref {
	var refs []Ref
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sha, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		name = strings.TrimPrefix(name, prefix)
		if name == "HEAD" {
			continue
		}
		refs = append(refs, Ref{Name: name, Commit: sha})
	}
	return refs
}

// CommitOf returns the commit a named ref points at.
func CommitOf(refs []Ref, name string) (string, bool) {
	for _, r := range refs {
		if r.Name == name {
			return r.Commit, true
		}
	}
	return "", false
}

// RefsAt returns the names of all refs pointing at commit.
func RefsAt(refs []Ref, commit string) []string {
	var names []string
	for _, r := range refs {
		if r.Commit == commit {
			names = append(names, r.Name)
		}
	}
	return names
}
