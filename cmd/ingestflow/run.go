package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/randalmurphal/ingestflow/artifact"
	"github.com/randalmurphal/ingestflow/auth"
	"github.com/randalmurphal/ingestflow/config"
	"github.com/randalmurphal/ingestflow/driver"
	ingesterrors "github.com/randalmurphal/ingestflow/errors"
	"github.com/randalmurphal/ingestflow/git"
	"github.com/randalmurphal/ingestflow/lifecycle"
	"github.com/randalmurphal/ingestflow/lock"
	"github.com/randalmurphal/ingestflow/message"
	"github.com/randalmurphal/ingestflow/metrics"
	"github.com/randalmurphal/ingestflow/notify"
	"github.com/randalmurphal/ingestflow/review"
	"github.com/randalmurphal/ingestflow/store"
)

// Environment variables the git credential helper reads.
const (
	gitUserEnv  = "INGESTFLOW_GIT_USER"
	gitTokenEnv = "INGESTFLOW_GIT_TOKEN"
)

func run(ctx context.Context, flags rootFlags, opts driver.Options, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(flags.config, nil)
	if err != nil {
		return ingesterrors.NewConfigError(err)
	}

	logger, closeLog, err := newLogger(cfg.Logging, flags.debug, stderr)
	if err != nil {
		return ingesterrors.NewConfigError(err)
	}
	defer closeLog()

	runID, err := nanoid.New(12)
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With("run_id", runID)

	runLock, err := lock.Acquire(cfg.Paths.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := runLock.Release(); err != nil {
			logger.Warn("failed to release lock", "error", err)
		}
	}()

	start := time.Now()
	logger.Info("starting run", "config", flags.config, "list_only", opts.ListOnly)

	st, err := store.NewS3Store(ctx, store.S3Options{
		Bucket:          cfg.AWS.StagingBucket,
		Endpoint:        cfg.AWS.EndpointURL,
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.Secrets.AWSAccessKeyID,
		SecretAccessKey: cfg.Secrets.AWSSecretAccessKey,
		VerifyCert:      cfg.AWS.VerifyCert,
		PathStyle:       cfg.AWS.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return ingesterrors.WrapAuthError(err, cfg.GitHub.Provider)
	}

	mirror, err := openMirror(cfg, logger)
	if err != nil {
		return err
	}

	notifier, closeNotifier := newNotifier(cfg, logger)
	defer closeNotifier()

	recorder := metrics.New(runID)
	messages := message.NewRenderer(cfg.MessageTemplates())

	machine, err := lifecycle.New(lifecycle.Config{
		Store:     st,
		Provider:  provider,
		Mirror:    mirror,
		Installer: lifecycle.NewExecInstaller(cfg.Paths.IngestionScript, cfg.CVMFS.IngestAsRoot, cfg.CVMFS.Wrapper),
		Messages:  messages,
		Notifier:  notifier,
		Recorder:  recorder,
		Logger:    logger,
		RunID:     runID,
	})
	if err != nil {
		return err
	}

	d, err := driver.New(driver.Config{
		Store:          st,
		Machine:        machine,
		Mirror:         mirror,
		PullRefSpec:    provider.PullRefSpec(),
		DownloadDir:    cfg.Paths.DownloadDir,
		MetadataSuffix: cfg.Paths.MetadataSuffix,
		Messages:       messages,
		Notifier:       notifier,
		Logger:         logger,
		RunID:          runID,
		Output:         stdout,
	})
	if err != nil {
		return err
	}

	summary, err := d.Run(ctx, opts)
	if err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" && !opts.ListOnly {
		recorder.RunFinished(summary.Processed, summary.Moved, summary.Failed, time.Since(start), time.Now())
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics", "error", err)
		}
	}
	if !opts.ListOnly {
		pruneDownloads(cfg.Paths, logger)
	}
	return nil
}

// pruneDownloads removes downloaded payloads past their retention. Failures
// only warn; the next run tries again.
func pruneDownloads(paths config.Paths, logger *slog.Logger) {
	if paths.DownloadRetention <= 0 {
		return
	}
	pruner := artifact.NewPruner(paths.DownloadDir, artifact.RetentionConfig{
		MaxAge:  paths.DownloadRetention,
		KeepMin: paths.DownloadKeep,
	})
	result, err := pruner.Prune(false)
	if err != nil {
		logger.Warn("failed to prune downloads", "error", err, "dir", paths.DownloadDir)
		return
	}
	for _, msg := range result.Errors {
		logger.Warn("failed to prune download", "error", msg)
	}
	if len(result.Deleted) > 0 {
		logger.Info("pruned downloads",
			"files", len(result.Deleted),
			"freed", humanize.Bytes(uint64(result.SpaceSaved)))
	}
}

// newProvider authenticates against the review host, as a GitHub App
// installation when one is configured and with the token otherwise.
func newProvider(ctx context.Context, cfg *config.Config) (review.Provider, error) {
	rc := review.Config{
		Kind:    cfg.GitHub.Provider,
		Repo:    cfg.GitHub.StagingRepo,
		Token:   cfg.Secrets.GitHubPAT,
		BaseURL: cfg.GitHub.BaseURL,
	}

	if cfg.UseGitHubApp() && rc.Kind != "gitlab" {
		key, err := auth.LoadPrivateKey(cfg.Secrets.GitHubAppPrivateKey)
		if err != nil {
			return nil, err
		}
		src := &auth.InstallationTokenSource{
			App:            auth.AppConfig{AppID: cfg.Secrets.GitHubAppID, PrivateKey: key},
			InstallationID: cfg.Secrets.GitHubAppInstallationID,
			BaseURL:        cfg.GitHub.BaseURL,
		}
		rc.HTTPClient = auth.NewInstallationClient(ctx, src)
	}
	return review.New(rc)
}

// openMirror clones the review repository under repo_base_dir on first use
// and reopens the clone afterwards.
func openMirror(cfg *config.Config, logger *slog.Logger) (*git.Mirror, error) {
	remote, err := remoteURL(cfg.GitHub.Provider, cfg.GitHub.BaseURL, cfg.GitHub.StagingRepo)
	if err != nil {
		return nil, ingesterrors.NewConfigError(err)
	}
	dir := filepath.Join(cfg.Paths.RepoBaseDir, path.Base(cfg.GitHub.StagingRepo))
	logger.Debug("opening review repository", "remote", remote, "dir", dir)

	env := credentialEnv(cfg.Secrets.GitHubUser, cfg.Secrets.GitHubPAT)
	mirror, err := git.OpenMirror(remote, dir, "main", git.WithEnv(env...))
	if err != nil {
		return nil, ingesterrors.WrapConnectionError(err, remote)
	}
	return mirror, nil
}

// remoteURL derives the HTTPS clone URL of repo. baseURL is the API
// endpoint; only its scheme and host are used.
func remoteURL(kind, baseURL, repo string) (string, error) {
	if _, _, err := review.SplitRepo(repo); err != nil {
		return "", err
	}

	host := "https://github.com"
	if kind == "gitlab" {
		host = "https://gitlab.com"
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("github.base_url: invalid URL %q", baseURL)
		}
		host = u.Scheme + "://" + u.Host
	}
	return host + "/" + strings.TrimSuffix(repo, ".git") + ".git", nil
}

// credentialEnv configures an inline credential helper through the
// environment. The secrets stay in the environment and never reach argv.
func credentialEnv(user, token string) []string {
	helper := fmt.Sprintf(`!f() { echo "username=${%s}"; echo "password=${%s}"; }; f`, gitUserEnv, gitTokenEnv)
	return []string{
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=credential.helper",
		"GIT_CONFIG_VALUE_0=" + helper,
		"GIT_TERMINAL_PROMPT=0",
		gitUserEnv + "=" + user,
		gitTokenEnv + "=" + token,
	}
}

// newNotifier fans lifecycle events out to the log and every configured
// sink. Slack only hears about completed ingestions.
func newNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, func()) {
	sinks := []notify.Notifier{notify.NewLogNotifier(logger)}
	closeFn := func() {}

	if cfg.Notification.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookNotifier(cfg.Notification.WebhookURL, nil))
	}
	if cfg.Notification.NATSURL != "" {
		nn, err := notify.NewNATSNotifier(cfg.Notification.NATSURL, cfg.Notification.NATSSubject)
		if err != nil {
			logger.Warn("NATS notifications disabled", "error", err)
		} else {
			sinks = append(sinks, nn)
			closeFn = nn.Close
		}
	}
	if cfg.Slack.IngestionNotification {
		var opts []notify.SlackOption
		if cfg.Slack.Channel != "" {
			opts = append(opts, notify.WithSlackChannel(cfg.Slack.Channel))
		}
		if cfg.Slack.Username != "" {
			opts = append(opts, notify.WithSlackUsername(cfg.Slack.Username))
		}
		slack := notify.NewSlackNotifier(cfg.Secrets.SlackWebhook, opts...)
		sinks = append(sinks, notify.Only(slack, notify.EventIngested))
	}
	return notify.NewMultiNotifier(sinks...), closeFn
}
