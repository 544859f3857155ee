// Package config loads ingestflow's configuration.
//
// The file is YAML with one mapping per section:
//
//	secrets:
//	  aws_access_key_id: AKIA...
//	  github_pat: ghp_...
//	paths:
//	  download_dir: /var/lib/ingestflow/downloads
//	aws:
//	  staging_bucket: software-staging
//	github:
//	  staging_repo: org/software-staging
//	  ingest_staged: "{date}: tarball {tarball} staged"
//
// Values are flattened to "section.key" and layered with clear precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. The configuration file
//  4. Built-in defaults (lowest priority)
//
// # Environment Variables
//
// Every key can be overridden from the environment. The variable name is
// the prefix followed by the upper-cased key with dots replaced:
//
//	INGESTFLOW_SECRETS_GITHUB_PAT=ghp_...   # sets "secrets.github_pat"
//	INGESTFLOW_AWS_REGION=eu-west-1         # sets "aws.region"
//
// # Config Sources
//
// Each resolved value tracks where it came from ("default", "file",
// "env", "flag"), which the CLI prints in debug mode.
//
// # Validation
//
// Load fails with *MissingKeyError, naming the key, when a required key
// has no value, and with *FileError when the file cannot be read.
package config
