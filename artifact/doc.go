// Package artifact manages the local copies of payloads and metadata files
// a run downloads.
//
// Downloads are kept after a run so that a retry of a failed installation
// does not fetch the payload again. A Pruner removes the ones that have
// outlived the configured retention.
//
// Example usage:
//
//	p := artifact.NewPruner(cfg.Paths.DownloadDir, artifact.RetentionConfig{
//	    MaxAge:  72 * time.Hour,
//	    KeepMin: 10,
//	})
//	result, err := p.Prune(false)
package artifact
