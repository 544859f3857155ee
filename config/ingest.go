package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "INGESTFLOW_"

// Required lists the keys without which no run can start.
var Required = []string{
	"secrets.aws_access_key_id",
	"secrets.aws_secret_access_key",
	"secrets.github_pat",
	"secrets.github_user",
	"paths.download_dir",
	"paths.ingestion_script",
	"paths.metadata_file_extension",
	"paths.repo_base_dir",
	"aws.staging_bucket",
	"github.staging_repo",
	"github.pr_body",
	"github.failed_ingestion_issue_body",
	"github.failed_tarball_overview_issue_body",
	"github.ingest_staged",
	"github.ingest_pr_opened",
	"github.ingest_approved",
	"github.ingest_rejected",
	"github.ingest_done",
}

// templateKeys are the [github] keys holding message templates.
var templateKeys = []string{
	"pr_body",
	"failed_ingestion_issue_body",
	"failed_tarball_overview_issue_body",
	"ingest_staged",
	"ingest_pr_opened",
	"ingest_approved",
	"ingest_rejected",
	"ingest_done",
}

// optionalEnvKeys may come from the environment alone.
var optionalEnvKeys = []string{
	"aws.endpoint_url",
	"aws.verify_cert_path",
	"github.base_url",
	"secrets.github_app_id",
	"secrets.github_app_installation_id",
	"secrets.github_app_private_key",
	"secrets.slack_webhook",
	"slack.channel",
	"slack.username",
	"notification.webhook_url",
	"notification.nats_url",
	"metrics.textfile",
	"logging.filename",
	"paths.download_retention",
	"paths.download_keep",
}

// Defaults returns the built-in default values.
func Defaults() map[string]string {
	return map[string]string{
		"aws.region":                   "us-east-1",
		"aws.force_path_style":         "true",
		"github.provider":              "github",
		"cvmfs.ingest_as_root":         "true",
		"cvmfs.wrapper":                "sudo",
		"slack.ingestion_notification": "false",
		"notification.nats_subject":    "ingestflow.events",
		"logging.level":                "info",
		"logging.format":               "auto",
		"paths.lock_file":              filepath.Join(os.TempDir(), "ingestflow.lock"),
	}
}

// Config is the typed view of a resolved configuration.
type Config struct {
	Secrets      Secrets
	Paths        Paths
	AWS          AWS
	GitHub       GitHub
	CVMFS        CVMFS
	Slack        Slack
	Notification Notification
	Logging      Logging
	Metrics      Metrics

	// Resolved keeps the raw values and their sources.
	Resolved *Resolved
}

// Secrets holds credentials.
type Secrets struct {
	AWSAccessKeyID          string
	AWSSecretAccessKey      string
	GitHubPAT               string
	GitHubUser              string
	GitHubAppID             int64
	GitHubAppInstallationID int64
	GitHubAppPrivateKey     string // path to PEM file
	SlackWebhook            string
}

// Paths holds local filesystem locations.
type Paths struct {
	DownloadDir     string
	IngestionScript string
	MetadataSuffix  string
	RepoBaseDir     string
	LockFile        string

	// Downloaded payloads older than DownloadRetention are pruned after a
	// run; zero disables pruning. DownloadKeep newest files always stay.
	DownloadRetention time.Duration
	DownloadKeep      int
}

// AWS configures the object store.
type AWS struct {
	StagingBucket  string
	EndpointURL    string
	Region         string
	VerifyCert     string // CA bundle path, or "false"
	ForcePathStyle bool
}

// GitHub configures the review host.
type GitHub struct {
	StagingRepo string
	Provider    string
	BaseURL     string
	Templates   map[string]string
}

// CVMFS configures how the installer is invoked.
type CVMFS struct {
	IngestAsRoot bool
	Wrapper      string
}

// Slack configures the chat notification sent after ingestion.
type Slack struct {
	IngestionNotification bool
	IngestionMessage      string
	Channel               string // overrides the webhook's default channel
	Username              string
}

// Notification configures additional event sinks.
type Notification struct {
	WebhookURL  string
	NATSURL     string
	NATSSubject string
}

// Logging configures the log handler.
type Logging struct {
	Filename string
	Level    string
	Format   string // auto, text or json
}

// Metrics configures metric export.
type Metrics struct {
	Textfile string
}

// Load reads path, applies environment and flag overrides and checks
// that every required key is present.
func Load(path string, flags map[string]string) (*Config, error) {
	resolver := NewResolver(ResolverConfig{
		Path:      path,
		EnvPrefix: EnvPrefix,
		Defaults:  Defaults(),
		EnvKeys:   append(append([]string{}, Required...), optionalEnvKeys...),
	})

	resolved, err := resolver.ResolveWithFlags(flags)
	if err != nil {
		return nil, err
	}
	if err := resolved.Require(Required...); err != nil {
		return nil, err
	}
	return FromResolved(resolved)
}

// FromResolved builds the typed view.
func FromResolved(r *Resolved) (*Config, error) {
	appID, err := r.Int64("secrets.github_app_id")
	if err != nil {
		return nil, err
	}
	installationID, err := r.Int64("secrets.github_app_installation_id")
	if err != nil {
		return nil, err
	}

	retention, err := r.Duration("paths.download_retention")
	if err != nil {
		return nil, err
	}
	keep, err := r.Int64("paths.download_keep")
	if err != nil {
		return nil, err
	}

	templates := make(map[string]string, len(templateKeys))
	for _, key := range templateKeys {
		if v := r.Get("github." + key); v != "" {
			templates[key] = v
		}
	}

	cfg := &Config{
		Secrets: Secrets{
			AWSAccessKeyID:          r.Get("secrets.aws_access_key_id"),
			AWSSecretAccessKey:      r.Get("secrets.aws_secret_access_key"),
			GitHubPAT:               r.Get("secrets.github_pat"),
			GitHubUser:              r.Get("secrets.github_user"),
			GitHubAppID:             appID,
			GitHubAppInstallationID: installationID,
			GitHubAppPrivateKey:     r.Get("secrets.github_app_private_key"),
			SlackWebhook:            r.Get("secrets.slack_webhook"),
		},
		Paths: Paths{
			DownloadDir:     r.Get("paths.download_dir"),
			IngestionScript: r.Get("paths.ingestion_script"),
			MetadataSuffix:  r.Get("paths.metadata_file_extension"),
			RepoBaseDir:     r.Get("paths.repo_base_dir"),
			LockFile:        r.Get("paths.lock_file"),

			DownloadRetention: retention,
			DownloadKeep:      int(keep),
		},
		AWS: AWS{
			StagingBucket:  r.Get("aws.staging_bucket"),
			EndpointURL:    r.Get("aws.endpoint_url"),
			Region:         r.Get("aws.region"),
			VerifyCert:     r.Get("aws.verify_cert_path"),
			ForcePathStyle: r.Bool("aws.force_path_style", true),
		},
		GitHub: GitHub{
			StagingRepo: r.Get("github.staging_repo"),
			Provider:    r.Get("github.provider"),
			BaseURL:     r.Get("github.base_url"),
			Templates:   templates,
		},
		CVMFS: CVMFS{
			IngestAsRoot: r.Bool("cvmfs.ingest_as_root", true),
			Wrapper:      r.Get("cvmfs.wrapper"),
		},
		Slack: Slack{
			IngestionNotification: r.Bool("slack.ingestion_notification", false),
			IngestionMessage:      r.Get("slack.ingestion_message"),
			Channel:               r.Get("slack.channel"),
			Username:              r.Get("slack.username"),
		},
		Notification: Notification{
			WebhookURL:  r.Get("notification.webhook_url"),
			NATSURL:     r.Get("notification.nats_url"),
			NATSSubject: r.Get("notification.nats_subject"),
		},
		Logging: Logging{
			Filename: r.Get("logging.filename"),
			Level:    r.Get("logging.level"),
			Format:   r.Get("logging.format"),
		},
		Metrics: Metrics{
			Textfile: r.Get("metrics.textfile"),
		},
		Resolved: r,
	}

	if cfg.Slack.IngestionNotification && cfg.Secrets.SlackWebhook == "" {
		return nil, &MissingKeyError{Key: "secrets.slack_webhook"}
	}
	if cfg.Secrets.GitHubAppID != 0 && cfg.Secrets.GitHubAppPrivateKey == "" {
		return nil, &MissingKeyError{Key: "secrets.github_app_private_key"}
	}
	switch cfg.GitHub.Provider {
	case "github", "gitlab":
	default:
		return nil, fmt.Errorf("github.provider: unknown provider %q", cfg.GitHub.Provider)
	}

	return cfg, nil
}

// UseGitHubApp reports whether GitHub App credentials are configured.
func (c *Config) UseGitHubApp() bool {
	return c.Secrets.GitHubAppID != 0
}

// MessageTemplates returns every configured message template keyed by
// template name.
func (c *Config) MessageTemplates() map[string]string {
	result := make(map[string]string, len(c.GitHub.Templates)+1)
	for k, v := range c.GitHub.Templates {
		result[k] = v
	}
	if c.Slack.IngestionMessage != "" {
		result["ingestion_message"] = c.Slack.IngestionMessage
	}
	return result
}
