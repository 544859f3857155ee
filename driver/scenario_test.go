package driver_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ingestflow/driver"
	"github.com/randalmurphal/ingestflow/git"
	"github.com/randalmurphal/ingestflow/lifecycle"
	"github.com/randalmurphal/ingestflow/message"
	"github.com/randalmurphal/ingestflow/metrics"
	"github.com/randalmurphal/ingestflow/review"
	"github.com/randalmurphal/ingestflow/store"
	"github.com/randalmurphal/ingestflow/tarball"
	"github.com/randalmurphal/ingestflow/testutil"
)

const (
	metaSuffix = ".meta.txt"
	sponsor    = "sponsor/software"
	payloadKey = "tarballs/2023.06/software/linux/x86_64/1700000000/foo-1.0.tgz"
	relPath    = "2023.06/software/linux/x86_64/1700000000/foo-1.0.tgz" + metaSuffix
	branch     = "foo-1.0.tgz"
)

var scenarioNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type scriptedInstaller struct {
	mu       sync.Mutex
	calls    int
	exitCode int
}

func (s *scriptedInstaller) Install(_ context.Context, req lifecycle.InstallRequest) (*lifecycle.InstallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &lifecycle.InstallResult{
		Command:  append([]string{"ingest.sh"}, req.Args()...),
		ExitCode: s.exitCode,
		Stderr:   fmt.Sprintf("exit %d", s.exitCode),
	}, nil
}

// scenario is a full pipeline over an in-memory bucket, a fake review host
// and a real git remote.
type scenario struct {
	t         *testing.T
	ctx       context.Context
	store     *store.Memory
	review    *review.Fake
	remote    string
	installer *scriptedInstaller
	metrics   *metrics.Recorder
	tarball   string
	driver    *driver.Driver
	commentID int64
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	ctx := context.Background()

	remote, clone := testutil.SetupRemote(t)
	g, err := git.NewContext(clone)
	require.NoError(t, err)
	mirror := git.NewMirror(g, "main")

	s := &scenario{
		t:         t,
		ctx:       ctx,
		store:     store.NewMemory("staging"),
		review:    review.NewFake("org/staging"),
		remote:    remote,
		installer: &scriptedInstaller{},
		metrics:   metrics.New("run-1"),
	}

	// Publish review-request refs the way a hosting service would.
	s.review.OnCreate = func(pr *review.PullRequest) {
		sha := testutil.RevParse(t, remote, "refs/heads/"+pr.Head)
		testutil.UpdateRef(t, remote, fmt.Sprintf("refs/pull/%d/head", pr.Number), sha)
	}
	s.review.AddPullRequest(sponsor, &review.PullRequest{Number: 42, State: review.StateOpen, Base: "2023.06-software.eessi.io"})
	s.commentID = s.review.AddComment(sponsor, 42, "Updates for foo-1.0.tgz:")

	tgz := testutil.WriteTarGz(t, t.TempDir(), branch, []testutil.Entry{
		{Name: "2023.06/", Dir: true},
		{Name: "2023.06/software/linux/x86_64/foo/1.0/", Dir: true},
		{Name: "2023.06/software/linux/x86_64/foo/1.0/bin/foo", Body: "#!/bin/sh\n"},
	})
	s.tarball = tgz
	payload := testutil.ReadFile(t, tgz)
	s.store.Put(payloadKey, payload)
	s.store.Put("new/"+relPath, testutil.Metadata(t, branch, testutil.SHA256(payload), int64(len(payload)), sponsor, 42, s.commentID))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	machine, err := lifecycle.New(lifecycle.Config{
		Store:     s.store,
		Provider:  s.review,
		Mirror:    mirror,
		Installer: s.installer,
		Messages: message.NewRenderer(map[string]string{
			message.PRBody:               "{tar_overview}\n\n{metadata}",
			message.FailedIngestionIssue: "{command} failed with {return_code}: {stderr}",
			message.FailedOverviewIssue:  "{tarball}: {error}",
			message.Staged:               "{date} staged {tarball}",
			message.ReviewRequested:      "{date} review {approval_pr}",
			message.Approved:             "{date} approved",
			message.Rejected:             "{date} rejected",
			message.Ingested:             "{date} ingested {prefix}",
		}),
		Recorder: s.metrics,
		Logger:   logger,
		RunID:    "run-1",
		Now:      func() time.Time { return scenarioNow },
	})
	require.NoError(t, err)

	s.driver, err = driver.New(driver.Config{
		Store:          s.store,
		Machine:        machine,
		Mirror:         mirror,
		PullRefSpec:    s.review.PullRefSpec(),
		DownloadDir:    t.TempDir(),
		MetadataSuffix: metaSuffix,
		Logger:         logger,
		RunID:          "run-1",
		Output:         io.Discard,
	})
	require.NoError(t, err)
	return s
}

func (s *scenario) run() *driver.Summary {
	s.t.Helper()
	summary, err := s.driver.Run(s.ctx, driver.Options{})
	require.NoError(s.t, err)
	return summary
}

// metadataKeys returns every key outside the payload prefix.
func (s *scenario) metadataKeys() []string {
	var keys []string
	for _, k := range s.store.Keys("") {
		if !strings.HasPrefix(k, lifecycle.PayloadPrefix+"/") {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestScenario_Approved(t *testing.T) {
	s := newScenario(t)

	// First pass: new -> staged -> review_requested, request stays open.
	s.run()
	assert.Equal(t, []string{"review_requested/" + relPath}, s.metadataKeys())
	assert.True(t, testutil.BranchExists(t, s.remote, branch))
	assert.True(t, testutil.FileOnBranch(t, s.remote, branch, "review_requested/"+relPath))
	require.Contains(t, s.review.PullRequests["org/staging"], 101)

	// A pass with the request still open changes nothing.
	s.run()
	assert.Equal(t, []string{"review_requested/" + relPath}, s.metadataKeys())

	testutil.MergeBranch(t, s.remote, branch)
	s.review.SetState("org/staging", 101, review.StateClosed, true)

	// Second pass: review_requested -> approved -> ingested.
	summary := s.run()
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"ingested/" + relPath}, s.metadataKeys())
	assert.Equal(t, 1, s.installer.calls)
	assert.True(t, testutil.FileOnBranch(t, s.remote, "main", "ingested/"+relPath))
	assert.False(t, testutil.FileOnBranch(t, s.remote, "main", "review_requested/"+relPath))

	prefix, err := tarball.Prefix(s.tarball)
	require.NoError(t, err)
	date := scenarioNow.Format(message.DateFormat)
	assert.Equal(t, []string{
		"Updates for foo-1.0.tgz:",
		date + " staged foo-1.0.tgz",
		date + " review https://example.com/org/staging/pull/101",
		date + " approved",
		date + " ingested " + prefix,
	}, strings.Split(s.review.CommentBody(s.commentID), "\n"))
	assert.Empty(t, s.review.Issues)

	// Terminal: further passes do nothing.
	s.run()
	assert.Equal(t, 1, s.installer.calls)
	assert.Equal(t, float64(1), s.metrics.TransitionCount("approved", "ingested"))
}

func TestScenario_MissingPayloadStaysNew(t *testing.T) {
	s := newScenario(t)
	require.NoError(t, s.store.Delete(s.ctx, payloadKey))
	before := s.store.Keys("")

	summary := s.run()
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"new/" + relPath}, s.metadataKeys())
	assert.Equal(t, before, s.store.Keys(""))
	assert.False(t, testutil.BranchExists(t, s.remote, branch))
	assert.Empty(t, s.review.PullRequests["org/staging"])
	assert.Equal(t, "Updates for foo-1.0.tgz:", s.review.CommentBody(s.commentID))
	assert.Zero(t, s.installer.calls)
}

func TestScenario_Rejected(t *testing.T) {
	s := newScenario(t)
	s.run()

	s.review.SetState("org/staging", 101, review.StateClosed, false)
	s.run()

	assert.Equal(t, []string{"rejected/" + relPath}, s.metadataKeys())
	assert.Zero(t, s.installer.calls)
	assert.Contains(t, s.review.CommentBody(s.commentID), "rejected")
}

func TestScenario_InstallFailureFilesOneIssue(t *testing.T) {
	s := newScenario(t)
	s.installer.exitCode = 2
	s.run()
	testutil.MergeBranch(t, s.remote, branch)
	s.review.SetState("org/staging", 101, review.StateClosed, true)

	s.run()
	s.run()

	assert.Equal(t, []string{"approved/" + relPath}, s.metadataKeys())
	assert.Equal(t, 2, s.installer.calls)
	require.Len(t, s.review.Issues, 1)
	assert.Equal(t, "Failed to ingest "+payloadKey, s.review.Issues[0].Title)
	assert.Contains(t, s.review.Issues[0].Body, "failed with 2")
}

func TestScenario_ETagMismatchKeepsOriginal(t *testing.T) {
	s := newScenario(t)
	s.store.CopyETag = func(src, dst string) string { return `"0000"` }

	summary := s.run()
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Consistency)
	assert.Equal(t, []string{"new/" + relPath}, s.metadataKeys())
	assert.Equal(t, "Updates for foo-1.0.tgz:", s.review.CommentBody(s.commentID))

	// Once the store behaves the tarball continues from where it was.
	s.store.CopyETag = nil
	s.run()
	assert.Equal(t, []string{"review_requested/" + relPath}, s.metadataKeys())
}

func TestScenario_MissingRequestRewinds(t *testing.T) {
	s := newScenario(t)
	s.review.OnCreate = nil // no request ref is ever published

	s.run()
	assert.Equal(t, []string{"review_requested/" + relPath}, s.metadataKeys())

	// No request ref at the branch head: the branch is dropped and the
	// tarball goes back to staged.
	s.run()
	assert.Contains(t, s.review.Deleted, branch)
	assert.Equal(t, []string{"staged/" + relPath}, s.metadataKeys())

	// The request opened earlier is still open and gets reused.
	s.run()
	assert.Equal(t, []string{"review_requested/" + relPath}, s.metadataKeys())
	assert.Len(t, s.review.PullRequests["org/staging"], 1)
}

func TestScenario_PatternFilter(t *testing.T) {
	s := newScenario(t)
	re, err := driver.CompilePattern("tarballs/2024")
	require.NoError(t, err)

	summary, err := s.driver.Run(s.ctx, driver.Options{Pattern: re})
	require.NoError(t, err)
	assert.Zero(t, summary.Listed)
	assert.Equal(t, []string{"new/" + relPath}, s.metadataKeys())
}
