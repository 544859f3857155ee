// Package driver runs one ingestion pass.
//
// For every selected state the driver refreshes the review-repository
// clone, lists the metadata objects under that state's prefix, maps each to
// its payload key and hands the resulting record to the lifecycle machine.
// A failure on one tarball is logged and counted; the pass goes on with the
// next one. In list-only mode nothing is downloaded or changed and the
// matching tarballs are printed as a table instead.
//
// Example usage:
//
//	d, err := driver.New(driver.Config{
//	    Store:          s3,
//	    Machine:        machine,
//	    Mirror:         mirror,
//	    PullRefSpec:    provider.PullRefSpec(),
//	    DownloadDir:    cfg.Paths.DownloadDir,
//	    MetadataSuffix: cfg.Paths.MetadataSuffix,
//	})
//	summary, err := d.Run(ctx, driver.Options{Pattern: re})
package driver
