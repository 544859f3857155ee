package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/randalmurphal/ingestflow/git"
	"github.com/randalmurphal/ingestflow/message"
	"github.com/randalmurphal/ingestflow/notify"
	"github.com/randalmurphal/ingestflow/review"
	"github.com/randalmurphal/ingestflow/tarball"
)

// handleNew commits the metadata into a branch named after the tarball,
// pushes it and moves the metadata object to staged.
func (m *Machine) handleNew(ctx context.Context, rec *Record, log *slog.Logger) error {
	if err := rec.requireMetadata(true); err != nil {
		log.Info("skipping tarball until it can be downloaded", "error", err)
		return err
	}

	existed, err := m.prepareBranch(rec)
	if err != nil {
		return err
	}
	if existed {
		log.Warn("branch already exists, reusing it", "branch", rec.Branch())
	}
	if err := m.mirror.Push(rec.Branch()); err != nil {
		return fmt.Errorf("push %s: %w", rec.Branch(), err)
	}

	if err := m.relocate(ctx, rec, StateNew, StateStaged, "", log); err != nil {
		return err
	}

	m.annotate(ctx, rec, message.Staged, "", log)
	m.emit(ctx, rec, notify.EventStaged, notify.SeverityInfo,
		fmt.Sprintf("%s staged for review", rec.Name()), nil)
	return nil
}

// prepareBranch makes sure the tarball's branch exists and carries its
// metadata under review_requested/. It reports whether the branch was
// already there.
func (m *Machine) prepareBranch(rec *Record) (bool, error) {
	branch := rec.Branch()
	existed := m.mirror.BranchExists(branch)
	if !existed {
		if err := m.mirror.CreateBranch(branch); err != nil && !errors.Is(err, git.ErrBranchExists) {
			return false, fmt.Errorf("create branch %s: %w", branch, err)
		}
	}

	rel := StateReviewRequested.String() + "/" + rec.RelPath()
	if err := m.mirror.CommitFile(branch, rel, rec.MetadataRaw, "new tarball staged"); err != nil {
		return existed, fmt.Errorf("commit metadata to %s: %w", branch, err)
	}
	return existed, nil
}

// handleStaged opens the review request for the tarball's branch and moves
// the metadata to review_requested.
func (m *Machine) handleStaged(ctx context.Context, rec *Record, log *slog.Logger) error {
	if err := rec.requireMetadata(true); err != nil {
		log.Info("skipping tarball until it can be downloaded", "error", err)
		return err
	}

	branch := rec.Branch()
	if _, err := m.prepareBranch(rec); err != nil {
		return err
	}
	if err := m.mirror.Push(branch); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}

	pr, err := m.openReview(ctx, rec, log)
	if err != nil {
		log.Error("failed to open review request", "error", err)
		body, rerr := m.render(message.FailedOverviewIssue, map[string]any{
			"tarball": rec.PayloadKey,
			"error":   err.Error(),
		})
		if rerr != nil {
			log.Warn("failed to render issue body", "error", rerr)
			body = err.Error()
		}
		if _, ierr := m.fileIssue(ctx, overviewFailedTitle(rec.PayloadKey), body); ierr != nil {
			log.Warn("failed to file issue", "error", ierr)
		}
		m.recorder.Failure("overview")
		return nil
	}
	rec.Review = pr

	if err := m.relocate(ctx, rec, StateStaged, StateReviewRequested, branch, log); err != nil {
		return err
	}

	m.annotate(ctx, rec, message.ReviewRequested, "", log)
	m.emit(ctx, rec, notify.EventReviewRequested, notify.SeverityInfo,
		fmt.Sprintf("review requested for %s: %s", rec.Name(), pr.HTMLURL),
		map[string]any{"review_url": pr.HTMLURL, "review_number": pr.Number})
	return nil
}

// openReview builds the overview and opens the review request, or finds
// the one a previous run already opened.
func (m *Machine) openReview(ctx context.Context, rec *Record, log *slog.Logger) (*review.PullRequest, error) {
	start := time.Now()
	overview, err := tarball.Overview(rec.LocalPayload, rec.URL)
	if err != nil {
		return nil, err
	}
	m.recorder.Step("overview", time.Since(start))

	body, err := m.render(message.PRBody, map[string]any{
		"tar_overview": overview,
		"metadata":     string(rec.MetadataRaw),
	})
	if err != nil {
		return nil, err
	}

	branch := rec.Branch()
	pr, err := m.provider.CreatePullRequest(ctx, review.Options{
		Title: "Ingest " + branch,
		Body:  body,
		Head:  branch,
		Base:  m.mirror.MainBranch(),
	})
	if errors.Is(err, review.ErrExists) {
		log.Info("review request already open, reusing it", "branch", branch)
		return m.provider.FindOpenPullRequest(ctx, branch)
	}
	if err != nil {
		return nil, err
	}
	log.Info("opened review request", "number", pr.Number, "url", pr.HTMLURL)
	return pr, nil
}

// handleReviewRequested polls the review request and moves the tarball on
// once it is closed.
func (m *Machine) handleReviewRequested(ctx context.Context, rec *Record, log *slog.Logger) error {
	pr, err := m.findReview(ctx, rec)
	if err != nil {
		return err
	}
	if pr == nil {
		return m.rewind(ctx, rec, log)
	}
	rec.Review = pr
	mainBranch := m.mirror.MainBranch()

	switch {
	case pr.State == review.StateOpen:
		log.Info("review request still open", "number", pr.Number)
		return nil
	case pr.Merged:
		if err := m.relocate(ctx, rec, StateReviewRequested, StateApproved, mainBranch, log); err != nil {
			return err
		}
		m.annotate(ctx, rec, message.Approved, "", log)
		m.emit(ctx, rec, notify.EventApproved, notify.SeverityInfo,
			fmt.Sprintf("%s approved for ingestion", rec.Name()), map[string]any{"review_number": pr.Number})
	default:
		if err := m.relocate(ctx, rec, StateReviewRequested, StateRejected, mainBranch, log); err != nil {
			return err
		}
		m.annotate(ctx, rec, message.Rejected, "", log)
		m.emit(ctx, rec, notify.EventRejected, notify.SeverityWarning,
			fmt.Sprintf("%s rejected", rec.Name()), map[string]any{"review_number": pr.Number})
	}
	return nil
}

// findReview resolves the review request through the mirror's remote refs:
// the tarball's branch gives a commit, and a request head ref at that same
// commit gives the request number. It returns nil when there is no branch
// or no request. When several requests share the commit the newest wins.
func (m *Machine) findReview(ctx context.Context, rec *Record) (*review.PullRequest, error) {
	refs, err := m.mirror.RemoteRefs()
	if err != nil {
		return nil, err
	}
	commit, ok := git.CommitOf(refs, rec.Branch())
	if !ok {
		return nil, nil
	}

	var numbers []int
	for _, name := range git.RefsAt(refs, commit) {
		if n, ok := m.provider.ParsePullRef(name); ok {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return nil, nil
	}
	sort.Sort(sort.Reverse(sort.IntSlice(numbers)))

	pr, err := m.provider.GetPullRequest(ctx, m.provider.Repo(), numbers[0])
	if err != nil {
		return nil, fmt.Errorf("get review request #%d: %w", numbers[0], err)
	}
	return pr, nil
}

// rewind handles a branch without a review request: the branch is deleted
// and the metadata goes back to staged so the next run opens the request.
func (m *Machine) rewind(ctx context.Context, rec *Record, log *slog.Logger) error {
	branch := rec.Branch()
	log.Warn("tarball has no review request, removing its branch", "branch", branch)

	if err := m.provider.DeleteBranch(ctx, branch); err != nil && !review.IsNotFound(err) {
		return fmt.Errorf("delete branch %s: %w", branch, err)
	}
	return m.relocate(ctx, rec, StateReviewRequested, StateStaged, "", log)
}

// handleApproved verifies the payload, runs the installer and on success
// moves the metadata to ingested.
func (m *Machine) handleApproved(ctx context.Context, rec *Record, log *slog.Logger) error {
	rec.Download(ctx, m.store, true, log)
	if rec.LocalMetadata != "" {
		if err := rec.loadMetadata(); err != nil {
			log.Warn("failed to parse metadata", "error", err)
		}
	}
	if err := rec.requireMetadata(true); err != nil {
		return err
	}

	start := time.Now()
	ok, actual, err := tarball.VerifySHA256(rec.LocalPayload, rec.Checksum)
	if err != nil {
		return err
	}
	m.recorder.Step("checksum", time.Since(start))
	if !ok {
		mismatch := &ChecksumMismatchError{Key: rec.PayloadKey, Declared: rec.Checksum, Actual: actual}
		log.Error("checksum of downloaded tarball does not match its metadata",
			"declared", rec.Checksum, "actual", actual)
		return mismatch
	}

	sponsor := rec.Sponsor
	if sponsor == nil {
		sponsor, err = m.cache.PullRequest(ctx, rec.SponsorRepo, rec.SponsorNumber)
		if err != nil {
			return fmt.Errorf("sponsor request %s#%d: %w", rec.SponsorRepo, rec.SponsorNumber, err)
		}
		rec.Sponsor = sponsor
	}

	req := InstallRequest{
		Payload:       rec.LocalPayload,
		SponsorRepo:   rec.SponsorRepo,
		SponsorBranch: sponsor.Base,
		SponsorNumber: rec.SponsorNumber,
		Uploader:      rec.Uploader,
	}
	log.Info("running installer", "args", req.Args())
	result, err := m.installer.Install(ctx, req)
	if err != nil {
		return fmt.Errorf("run installer: %w", err)
	}
	m.recorder.Step("install", result.Duration)
	log.Info("installer finished", "exit_code", result.ExitCode, "duration", result.Duration.Round(time.Millisecond))
	log.Debug("installer output", "stdout", result.Stdout, "stderr", result.Stderr)

	if !result.OK() {
		m.reportInstallFailure(ctx, rec, result, log)
		return nil
	}

	prefix, err := tarball.Prefix(rec.LocalPayload)
	if err != nil {
		log.Warn("failed to read tarball prefix", "error", err)
	}

	if err := m.relocate(ctx, rec, StateApproved, StateIngested, m.mirror.MainBranch(), log); err != nil {
		return err
	}
	m.annotate(ctx, rec, message.Ingested, prefix, log)

	text, err := m.render(message.IngestionMessage, map[string]any{"tarball": rec.Branch()})
	if err != nil {
		log.Warn("failed to render ingestion message", "error", err)
		text = rec.Branch() + " has been ingested."
	}
	m.emit(ctx, rec, notify.EventIngested, notify.SeverityInfo, text,
		map[string]any{"prefix": prefix, "duration": result.Duration.String()})
	return nil
}

func (m *Machine) reportInstallFailure(ctx context.Context, rec *Record, result *InstallResult, log *slog.Logger) {
	log.Error("installer failed", "exit_code", result.ExitCode, "command", result.CommandLine())
	m.recorder.Failure("install")

	body, err := m.render(message.FailedIngestionIssue, map[string]any{
		"command":     result.CommandLine(),
		"tarball":     rec.PayloadKey,
		"return_code": result.ExitCode,
		"stdout":      result.Stdout,
		"stderr":      result.Stderr,
	})
	if err != nil {
		log.Warn("failed to render issue body", "error", err)
		body = fmt.Sprintf("command: %s\nexit code: %d\n\nstdout:\n%s\n\nstderr:\n%s",
			result.CommandLine(), result.ExitCode, result.Stdout, result.Stderr)
	}
	if _, err := m.fileIssue(ctx, ingestFailedTitle(rec.PayloadKey), body); err != nil {
		log.Warn("failed to file issue", "error", err)
	}

	m.emit(ctx, rec, notify.EventIngestFailed, notify.SeverityError,
		fmt.Sprintf("ingestion of %s failed with exit code %d", rec.Name(), result.ExitCode),
		map[string]any{"exit_code": result.ExitCode})
}
