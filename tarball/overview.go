package tarball

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// SummaryThreshold is the member count from which the overview is
	// summarized instead of listed in full.
	SummaryThreshold = 100

	// MaxOverviewLength keeps review-request bodies under the hosting
	// service's 65536 character limit. It counts characters, not bytes.
	MaxOverviewLength = 60000

	truncationNotice = "\n\nWARNING: output exceeded the maximum length and was truncated!\n```"
)

// Overview reads the archive at archivePath and describes its contents.
func Overview(archivePath, url string) (string, error) {
	members, err := Members(archivePath)
	if err != nil {
		return "", err
	}
	return Summarize(members, url), nil
}

// Summarize renders the overview text for members.
//
// Fewer than SummaryThreshold members are listed in full. Larger archives
// are reduced to software install directories (<prefix>software/*/*),
// module files (<prefix>modules/*/*/*.lua) and anything outside those two
// roots, where prefix is the members' common prefix.
func Summarize(members []Member, url string) string {
	paths := Paths(members)

	desc := "Full listing of the contents of the tarball:"
	listing := paths
	if len(members) >= SummaryThreshold {
		desc = "Summarized overview of the contents of the tarball:"
		listing = summaryPaths(members, CommonPrefix(paths))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total number of items in the tarball: %d", len(members))
	fmt.Fprintf(&b, "\nURL to the tarball: %s", url)
	fmt.Fprintf(&b, "\n%s\n", desc)
	fmt.Fprintf(&b, "```\n%s\n```", strings.Join(listing, "\n"))

	return truncate(b.String(), MaxOverviewLength)
}

// truncate cuts s after max characters and appends the truncation notice.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + truncationNotice
		}
		n++
	}
	return s
}

func summaryPaths(members []Member, prefix string) []string {
	softwareRoot := path.Join(prefix, "software")
	modulesRoot := path.Join(prefix, "modules")
	softwarePattern := path.Join(softwareRoot, "*", "*")
	modulePattern := path.Join(modulesRoot, "*", "*", "*.lua")

	var selected []string
	for _, m := range members {
		switch {
		case m.Dir && match(softwarePattern, m.Path):
			selected = append(selected, m.Path)
		case m.Regular && match(modulePattern, m.Path):
			selected = append(selected, m.Path)
		case !under(m.Path, softwareRoot) && !under(m.Path, modulesRoot):
			selected = append(selected, m.Path)
		}
	}
	sort.Strings(selected)
	return selected
}

func match(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// under reports whether root is a strict ancestor of p.
func under(p, root string) bool {
	return strings.HasPrefix(p, root+"/")
}
