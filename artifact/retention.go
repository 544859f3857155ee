package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RetentionConfig defines how long downloads are kept.
type RetentionConfig struct {
	MaxAge  time.Duration // files modified longer ago are removed; zero keeps everything
	KeepMin int           // newest files kept regardless of age
}

// Pruner removes stale downloads from one directory.
type Pruner struct {
	dir    string
	config RetentionConfig
	now    func() time.Time
}

// NewPruner creates a pruner for dir.
func NewPruner(dir string, config RetentionConfig) *Pruner {
	return &Pruner{dir: dir, config: config, now: time.Now}
}

// PruneResult summarizes a prune pass.
type PruneResult struct {
	Deleted    []string `json:"deleted"`
	Kept       []string `json:"kept"`
	Errors     []string `json:"errors,omitempty"`
	SpaceSaved int64    `json:"spaceSaved"`
}

type download struct {
	name     string
	size     int64
	modified time.Time
}

// Prune removes every regular file older than MaxAge, keeping the KeepMin
// newest. Subdirectories are left alone. With dryRun nothing is removed
// but the result reports what would be.
func (p *Pruner) Prune(dryRun bool) (*PruneResult, error) {
	result := &PruneResult{
		Deleted: make([]string, 0),
		Kept:    make([]string, 0),
	}
	if p.config.MaxAge <= 0 {
		return result, nil
	}

	files, err := p.list()
	if err != nil {
		return nil, err
	}

	// Newest first.
	sort.Slice(files, func(i, j int) bool {
		return files[i].modified.After(files[j].modified)
	})

	threshold := p.now().Add(-p.config.MaxAge)
	for i, f := range files {
		if i < p.config.KeepMin || !f.modified.Before(threshold) {
			result.Kept = append(result.Kept, f.name)
			continue
		}
		if !dryRun {
			if err := os.Remove(filepath.Join(p.dir, f.name)); err != nil && !os.IsNotExist(err) {
				result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", f.name, err))
				continue
			}
		}
		result.Deleted = append(result.Deleted, f.name)
		result.SpaceSaved += f.size
	}
	return result, nil
}

// DiskUsage reports how much the download directory holds.
func (p *Pruner) DiskUsage() (*DiskUsageStats, error) {
	files, err := p.list()
	if err != nil {
		return nil, err
	}
	stats := &DiskUsageStats{FileCount: len(files)}
	for _, f := range files {
		stats.TotalSize += f.size
		if stats.Oldest.IsZero() || f.modified.Before(stats.Oldest) {
			stats.Oldest = f.modified
		}
	}
	return stats, nil
}

// DiskUsageStats contains disk usage statistics.
type DiskUsageStats struct {
	FileCount int       `json:"fileCount"`
	TotalSize int64     `json:"totalSize"`
	Oldest    time.Time `json:"oldest"`
}

func (p *Pruner) list() ([]download, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	files := make([]download, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed since ReadDir.
			continue
		}
		files = append(files, download{name: entry.Name(), size: info.Size(), modified: info.ModTime()})
	}
	return files, nil
}
