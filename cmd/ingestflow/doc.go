// Command ingestflow runs one pass of the tarball ingestion lifecycle.
//
// Every tarball found in the staging bucket is moved at most one step
// further per state handler: new tarballs get a review branch, staged ones
// a review request, reviewed ones are approved or rejected, and approved
// ones are handed to the ingestion script. Run it from cron; a second
// instance started while one is running exits with status 3.
//
// Usage:
//
//	ingestflow -c /etc/ingestflow.yaml
//	ingestflow -c /etc/ingestflow.yaml -l -s approved
//	ingestflow -c /etc/ingestflow.yaml -p 'tarballs/2023.06/software/linux/x86_64' -v
package main
