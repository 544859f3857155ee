package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/ingestflow/git"
	"github.com/randalmurphal/ingestflow/message"
	"github.com/randalmurphal/ingestflow/notify"
	"github.com/randalmurphal/ingestflow/review"
	"github.com/randalmurphal/ingestflow/store"
	"github.com/randalmurphal/ingestflow/testutil"
)

const (
	testSuffix  = ".meta.txt"
	testSponsor = "sponsor/software"
	testReview  = "org/staging"
	testPayload = "tarballs/2023.06/software/linux/x86_64/1700000000/foo-1.0.tgz"
)

var testTemplates = map[string]string{
	message.PRBody:               "{tar_overview}\n\nMetadata:\n```\n{metadata}\n```",
	message.FailedIngestionIssue: "command: {command}\ntarball: {tarball}\nexit code: {return_code}\nstdout: {stdout}\nstderr: {stderr}",
	message.FailedOverviewIssue:  "could not read {tarball}: {error}",
	message.Staged:               "{date} | {tarball} | staged",
	message.ReviewRequested:      "{date} | {tarball} | review requested: {approval_pr}",
	message.Approved:             "{date} | {tarball} | approved",
	message.Rejected:             "{date} | {tarball} | rejected",
	message.Ingested:             "{date} | {tarball} | ingested under {prefix}",
}

// fakeMirror keeps branches as path -> content maps. Pushed branches are
// copied into remote.
type fakeMirror struct {
	main     string
	local    map[string]map[string][]byte
	remote   map[string]map[string][]byte
	refs     []git.Ref
	pushes   []string
	commits  []string
	failPush error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		main:   "main",
		local:  map[string]map[string][]byte{"main": {}},
		remote: map[string]map[string][]byte{"main": {}},
	}
}

func (f *fakeMirror) MainBranch() string { return f.main }

func (f *fakeMirror) BranchExists(name string) bool {
	_, ok := f.local[name]
	return ok
}

func (f *fakeMirror) CreateBranch(name string) error {
	if f.BranchExists(name) {
		return git.ErrBranchExists
	}
	f.local[name] = copyTree(f.remote[f.main])
	return nil
}

func (f *fakeMirror) CommitFile(branch, rel string, content []byte, msg string) error {
	tree, ok := f.local[branch]
	if !ok {
		return fmt.Errorf("checkout %s: %w", branch, git.ErrBranchNotFound)
	}
	if bytes.Equal(tree[rel], content) {
		return nil
	}
	tree[rel] = append([]byte(nil), content...)
	f.commits = append(f.commits, branch+": "+msg)
	return nil
}

func (f *fakeMirror) MoveFile(branch, oldRel, newRel, msg string) (bool, error) {
	tree, ok := f.local[branch]
	if !ok {
		return false, fmt.Errorf("checkout %s: %w", branch, git.ErrBranchNotFound)
	}
	content, ok := tree[oldRel]
	if !ok {
		return false, nil
	}
	delete(tree, oldRel)
	tree[newRel] = content
	f.commits = append(f.commits, branch+": "+msg)
	return true, nil
}

func (f *fakeMirror) Push(branch string) error {
	if f.failPush != nil {
		return f.failPush
	}
	tree, ok := f.local[branch]
	if !ok {
		return fmt.Errorf("push %s: %w", branch, git.ErrBranchNotFound)
	}
	f.remote[branch] = copyTree(tree)
	f.pushes = append(f.pushes, branch)
	return nil
}

func (f *fakeMirror) RemoteRefs() ([]git.Ref, error) {
	return f.refs, nil
}

// merge lands branch on main, as a merged review request would.
func (f *fakeMirror) merge(branch string) {
	for k, v := range f.remote[branch] {
		f.remote["main"][k] = v
		f.local["main"][k] = v
	}
}

func copyTree(tree map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(tree))
	for k, v := range tree {
		out[k] = v
	}
	return out
}

// fakeInstaller records requests and answers with a fixed result.
type fakeInstaller struct {
	mu       sync.Mutex
	requests []InstallRequest
	exitCode int
	stdout   string
	stderr   string
	err      error
}

func (f *fakeInstaller) Install(_ context.Context, req InstallRequest) (*InstallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &InstallResult{
		Command:  append([]string{"/opt/ingest.sh"}, req.Args()...),
		ExitCode: f.exitCode,
		Stdout:   f.stdout,
		Stderr:   f.stderr,
		Duration: time.Millisecond,
	}, nil
}

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) types() []notify.EventType {
	var out []notify.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type countingRecorder struct {
	transitions []string
	failures    []string
	steps       map[string]int
}

func (c *countingRecorder) Transition(from, to string) {
	c.transitions = append(c.transitions, from+"->"+to)
}

func (c *countingRecorder) Step(name string, _ time.Duration) {
	if c.steps == nil {
		c.steps = make(map[string]int)
	}
	c.steps[name]++
}

func (c *countingRecorder) Failure(kind string) {
	c.failures = append(c.failures, kind)
}

// env is a machine wired to in-memory collaborators.
type env struct {
	t         *testing.T
	ctx       context.Context
	store     *store.Memory
	review    *review.Fake
	mirror    *fakeMirror
	installer *fakeInstaller
	notifier  *recordingNotifier
	recorder  *countingRecorder
	machine   *Machine
	dir       string
	commentID int64

	payload  []byte
	metadata []byte
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		t:         t,
		ctx:       context.Background(),
		store:     store.NewMemory("staging"),
		review:    review.NewFake(testReview),
		mirror:    newFakeMirror(),
		installer: &fakeInstaller{},
		notifier:  &recordingNotifier{},
		recorder:  &countingRecorder{},
		dir:       t.TempDir(),
	}

	e.review.AddPullRequest(testSponsor, &review.PullRequest{
		Number: 42, State: review.StateOpen, Base: "2023.06-software.eessi.io",
		HTMLURL: "https://example.com/" + testSponsor + "/pull/42",
	})
	e.commentID = e.review.AddComment(testSponsor, 42, "Updates for foo-1.0.tgz:")

	tgz := testutil.WriteTarGz(t, t.TempDir(), "foo-1.0.tgz", []testutil.Entry{
		{Name: "2023.06/", Dir: true},
		{Name: "2023.06/software/", Dir: true},
		{Name: "2023.06/software/foo/", Dir: true},
		{Name: "2023.06/software/foo/1.0/", Dir: true},
		{Name: "2023.06/software/foo/1.0/bin/foo", Body: "#!/bin/sh\n"},
	})
	e.payload = testutil.ReadFile(t, tgz)
	e.metadata = testutil.Metadata(t, "foo-1.0.tgz", testutil.SHA256(e.payload), int64(len(e.payload)), testSponsor, 42, e.commentID)

	m, err := New(Config{
		Store:     e.store,
		Provider:  e.review,
		Mirror:    e.mirror,
		Installer: e.installer,
		Messages:  message.NewRenderer(testTemplates),
		Notifier:  e.notifier,
		Recorder:  e.recorder,
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		RunID:     "run-1",
		Now:       func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.machine = m
	return e
}

// upload places payload and metadata in the store with metadata in state.
func (e *env) upload(state State) {
	e.store.Put(testPayload, e.payload)
	e.store.Put(metadataKey(state), e.metadata)
}

func metadataKey(state State) string {
	return state.String() + "/2023.06/software/linux/x86_64/1700000000/foo-1.0.tgz" + testSuffix
}

// record lists the metadata object for state and builds its record.
func (e *env) record(state State) *Record {
	e.t.Helper()
	objects, err := e.store.List(e.ctx, state.String()+"/")
	if err != nil {
		e.t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 1 {
		e.t.Fatalf("listed %d objects under %s, want 1", len(objects), state)
	}
	return NewRecord(e.ctx, e.sources(), testPayload, state, objects[0])
}

func (e *env) sources() Sources {
	return Sources{
		Store:          e.store,
		Cache:          e.machine.Cache(),
		DownloadDir:    e.dir,
		MetadataSuffix: testSuffix,
		Logger:         slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

// metadataKeys returns every metadata key in the store.
func (e *env) metadataKeys() []string {
	var keys []string
	for _, s := range AllStates() {
		keys = append(keys, e.store.Keys(s.String()+"/")...)
	}
	sort.Strings(keys)
	return keys
}

// publishReview points a pull/<n>/head ref and the branch ref at the same commit.
func (e *env) publishReview(number int) {
	branch := path.Base(testPayload)
	commit := fmt.Sprintf("%040d", number)
	e.mirror.refs = []git.Ref{
		{Name: "main", Commit: "0000000000000000000000000000000000000001"},
		{Name: branch, Commit: commit},
		{Name: fmt.Sprintf("pull/%d/head", number), Commit: commit},
	}
}

func (e *env) comment() string {
	return e.review.CommentBody(e.commentID)
}
