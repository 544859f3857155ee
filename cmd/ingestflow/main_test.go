package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/ingestflow/config"
	"github.com/randalmurphal/ingestflow/driver"
	ingesterrors "github.com/randalmurphal/ingestflow/errors"
	"github.com/randalmurphal/ingestflow/lifecycle"
	"github.com/randalmurphal/ingestflow/lock"
	"github.com/randalmurphal/ingestflow/notify"
)

func TestRootFlags_Options(t *testing.T) {
	cmd := newRootCommand()
	if err := cmd.ParseFlags([]string{"-l", "-v", "-s", "staged", "-s", "pr_opened,approved", "-p", "tarballs/2023"}); err != nil {
		t.Fatal(err)
	}

	states, _ := cmd.Flags().GetStringSlice("state")
	listOnly, _ := cmd.Flags().GetBool("list-only")
	verbose, _ := cmd.Flags().GetBool("verbose")
	pattern, _ := cmd.Flags().GetString("pattern")
	opts, err := rootFlags{states: states, listOnly: listOnly, verbose: verbose, pattern: pattern}.options()
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}

	want := []lifecycle.State{lifecycle.StateStaged, lifecycle.StateReviewRequested, lifecycle.StateApproved}
	if len(opts.States) != len(want) {
		t.Fatalf("states = %v, want %v", opts.States, want)
	}
	for i := range want {
		if opts.States[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, opts.States[i], want[i])
		}
	}
	if !opts.ListOnly || !opts.Verbose {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Pattern == nil || opts.Pattern.MatchString("x/tarballs/2023") {
		t.Errorf("pattern = %v, want anchored", opts.Pattern)
	}
}

func TestRootFlags_Invalid(t *testing.T) {
	if _, err := (rootFlags{states: []string{"shipped"}}).options(); err == nil {
		t.Error("unknown state should fail")
	}
	if _, err := (rootFlags{pattern: "(["}).options(); err == nil {
		t.Error("invalid pattern should fail")
	}
}

func TestRemoteURL(t *testing.T) {
	tests := []struct {
		kind, base, repo string
		want             string
	}{
		{"github", "", "org/staging", "https://github.com/org/staging.git"},
		{"github", "https://ghe.example.com/api/v3/", "org/staging", "https://ghe.example.com/org/staging.git"},
		{"gitlab", "", "group/staging", "https://gitlab.com/group/staging.git"},
		{"gitlab", "https://git.example.org/api/v4", "group/staging", "https://git.example.org/group/staging.git"},
	}
	for _, tt := range tests {
		got, err := remoteURL(tt.kind, tt.base, tt.repo)
		if err != nil || got != tt.want {
			t.Errorf("remoteURL(%q, %q, %q) = %q, %v; want %q", tt.kind, tt.base, tt.repo, got, err, tt.want)
		}
	}
	if _, err := remoteURL("github", "", "staging"); err == nil {
		t.Error("repository without owner should fail")
	}
}

func TestCredentialEnv(t *testing.T) {
	env := credentialEnv("bot", "s3cret")
	joined := strings.Join(env, "\n")

	if !strings.Contains(joined, "GIT_CONFIG_KEY_0=credential.helper") {
		t.Errorf("env = %v", env)
	}
	for _, kv := range env {
		if strings.HasPrefix(kv, "GIT_CONFIG_VALUE_0=") && strings.Contains(kv, "s3cret") {
			t.Error("the helper must reference the token, not embed it")
		}
	}
	if !strings.Contains(joined, gitTokenEnv+"=s3cret") || !strings.Contains(joined, gitUserEnv+"=bot") {
		t.Errorf("env = %v", env)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := newLogger(config.Logging{Level: "warn"}, false, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %s", out)
	}
	// A buffer is not a terminal, so auto picks JSON.
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("output = %s, want JSON", out)
	}

	buf.Reset()
	logger, _, err = newLogger(config.Logging{Level: "warn", Format: "text"}, true, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("details")
	if !strings.Contains(buf.String(), "msg=details") {
		t.Errorf("--debug should override the level: %s", buf.String())
	}

	if _, _, err := newLogger(config.Logging{Format: "xml"}, false, &buf); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ingestflow.log")
	logger, closeFn, err := newLogger(config.Logging{Filename: path}, false, os.Stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("to file")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestPruneDownloads(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old.tgz")
	if err := os.WriteFile(stale, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger, _, err := newLogger(config.Logging{Format: "text"}, false, &buf)
	if err != nil {
		t.Fatal(err)
	}

	pruneDownloads(config.Paths{DownloadDir: dir}, logger)
	if _, err := os.Stat(stale); err != nil {
		t.Error("pruning ran without a retention")
	}

	pruneDownloads(config.Paths{DownloadDir: dir, DownloadRetention: 24 * time.Hour}, logger)
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale download not pruned")
	}
	if !strings.Contains(buf.String(), "pruned downloads") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestNewNotifier_SlackIdentity(t *testing.T) {
	var got struct {
		Text     string `json:"text"`
		Channel  string `json:"channel"`
		Username string `json:"username"`
	}
	posts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &config.Config{
		Secrets: config.Secrets{SlackWebhook: server.URL},
		Slack:   config.Slack{IngestionNotification: true, Channel: "#ingestion", Username: "ingestbot"},
	}
	var buf bytes.Buffer
	logger, _, err := newLogger(config.Logging{Format: "text"}, false, &buf)
	if err != nil {
		t.Fatal(err)
	}
	n, closeFn := newNotifier(cfg, logger)
	defer closeFn()

	ctx := context.Background()
	if err := n.Notify(ctx, notify.Event{Type: notify.EventStaged, Message: "staged"}); err != nil {
		t.Fatalf("Notify staged: %v", err)
	}
	if posts != 0 {
		t.Fatal("slack should only hear about ingestions")
	}
	if err := n.Notify(ctx, notify.Event{Type: notify.EventIngested, Message: "foo-1.0.tgz ingested"}); err != nil {
		t.Fatalf("Notify ingested: %v", err)
	}
	if posts != 1 || got.Channel != "#ingestion" || got.Username != "ingestbot" || got.Text != "foo-1.0.tgz ingested" {
		t.Errorf("posts = %d, payload = %+v", posts, got)
	}
}

const testConfig = `
secrets:
  aws_access_key_id: AKIA
  aws_secret_access_key: secret
  github_pat: ghp_token
  github_user: ingest-bot
paths:
  download_dir: %[1]s/downloads
  ingestion_script: /usr/local/bin/ingest
  metadata_file_extension: .meta.txt
  repo_base_dir: %[1]s/repos
  lock_file: %[1]s/ingestflow.lock
aws:
  staging_bucket: staging
github:
  staging_repo: org/staging
  pr_body: "{tar_overview}"
  failed_ingestion_issue_body: "{command} failed"
  failed_tarball_overview_issue_body: "{tarball}: {error}"
  ingest_staged: "{date}: staged"
  ingest_pr_opened: "{date}: {approval_pr}"
  ingest_approved: "{date}: approved"
  ingest_rejected: "{date}: rejected"
  ingest_done: "{date}: ingested {prefix}"
logging:
  filename: %[1]s/ingestflow.log
`

func TestRun_ExitCodes(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		flags := rootFlags{config: filepath.Join(t.TempDir(), "absent.yaml")}
		err := run(context.Background(), flags, mustOptions(t, flags), &bytes.Buffer{}, &bytes.Buffer{})
		if code := ingesterrors.ExitCode(err); code != ingesterrors.ExitConfig {
			t.Errorf("exit code = %d (%v), want %d", code, err, ingesterrors.ExitConfig)
		}
	})

	t.Run("incomplete config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ingestflow.yaml")
		if err := os.WriteFile(path, []byte("aws:\n  staging_bucket: staging\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		flags := rootFlags{config: path}
		err := run(context.Background(), flags, mustOptions(t, flags), &bytes.Buffer{}, &bytes.Buffer{})
		if code := ingesterrors.ExitCode(err); code != ingesterrors.ExitConfig {
			t.Errorf("exit code = %d (%v), want %d", code, err, ingesterrors.ExitConfig)
		}
	})

	t.Run("lock held", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ingestflow.yaml")
		content := strings.ReplaceAll(testConfig, "%[1]s", dir)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		held, err := lock.Acquire(filepath.Join(dir, "ingestflow.lock"))
		if err != nil {
			t.Fatal(err)
		}
		defer held.Release()

		flags := rootFlags{config: path}
		err = run(context.Background(), flags, mustOptions(t, flags), &bytes.Buffer{}, &bytes.Buffer{})
		if code := ingesterrors.ExitCode(err); code != ingesterrors.ExitLocked {
			t.Errorf("exit code = %d (%v), want %d", code, err, ingesterrors.ExitLocked)
		}
	})
}

func mustOptions(t *testing.T, f rootFlags) driver.Options {
	t.Helper()
	opts, err := f.options()
	if err != nil {
		t.Fatal(err)
	}
	return opts
}
