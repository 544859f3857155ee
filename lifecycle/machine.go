package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/ingestflow/git"
	"github.com/randalmurphal/ingestflow/message"
	"github.com/randalmurphal/ingestflow/notify"
	"github.com/randalmurphal/ingestflow/review"
	"github.com/randalmurphal/ingestflow/store"
)

// Mirror is the local clone of the review repository. *git.Mirror
// implements it.
type Mirror interface {
	MainBranch() string
	BranchExists(name string) bool
	CreateBranch(name string) error
	CommitFile(branch, rel string, content []byte, message string) error
	MoveFile(branch, oldRel, newRel, message string) (bool, error)
	Push(branch string) error
	RemoteRefs() ([]git.Ref, error)
}

var _ Mirror = (*git.Mirror)(nil)

// Recorder receives run measurements. The metrics package implements it.
type Recorder interface {
	Transition(from, to string)
	Step(name string, d time.Duration)
	Failure(kind string)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, string)  {}
func (nopRecorder) Step(string, time.Duration) {}
func (nopRecorder) Failure(string)             {}

// Config wires a Machine to its collaborators.
type Config struct {
	Store     store.Store
	Provider  review.Provider
	Mirror    Mirror
	Cache     *Cache
	Installer Installer
	Messages  *message.Renderer

	// Optional.
	Notifier notify.Notifier
	Recorder Recorder
	Logger   *slog.Logger
	RunID    string
	Now      func() time.Time
}

// Machine advances records through the lifecycle. Each call to Run
// executes at most one handler.
type Machine struct {
	store     store.Store
	provider  review.Provider
	mirror    Mirror
	cache     *Cache
	installer Installer
	messages  *message.Renderer
	notifier  notify.Notifier
	recorder  Recorder
	logger    *slog.Logger
	runID     string
	now       func() time.Time
}

// New validates cfg and creates a Machine.
func New(cfg Config) (*Machine, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("lifecycle: store is required")
	case cfg.Provider == nil:
		return nil, errors.New("lifecycle: review provider is required")
	case cfg.Mirror == nil:
		return nil, errors.New("lifecycle: mirror is required")
	case cfg.Installer == nil:
		return nil, errors.New("lifecycle: installer is required")
	case cfg.Messages == nil:
		return nil, errors.New("lifecycle: message renderer is required")
	}

	m := &Machine{
		store:     cfg.Store,
		provider:  cfg.Provider,
		mirror:    cfg.Mirror,
		cache:     cfg.Cache,
		installer: cfg.Installer,
		messages:  cfg.Messages,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		runID:     cfg.RunID,
		now:       cfg.Now,
	}
	if m.cache == nil {
		m.cache = NewCache(cfg.Provider)
	}
	if m.notifier == nil {
		m.notifier = notify.NopNotifier{}
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Cache returns the lookup cache records should be built with.
func (m *Machine) Cache() *Cache {
	return m.cache
}

// Run executes the handler for rec's current state and returns the record
// with its state updated to wherever the handler left it. On error the
// state is unchanged unless a relocation completed before the failure.
func (m *Machine) Run(ctx context.Context, rec *Record) (*Record, error) {
	log := m.logger.With("tarball", rec.PayloadKey, "state", rec.State.String())
	start := time.Now()

	var (
		step string
		err  error
	)
	switch rec.State {
	case StateNew:
		step = "new"
		err = m.handleNew(ctx, rec, log)
	case StateStaged:
		step = "staged"
		err = m.handleStaged(ctx, rec, log)
	case StateReviewRequested:
		step = "review_requested"
		err = m.handleReviewRequested(ctx, rec, log)
	case StateApproved:
		step = "approved"
		err = m.handleApproved(ctx, rec, log)
	case StateRejected, StateIngested:
		log.Debug("terminal state, nothing to do")
		return rec, nil
	default:
		log.Warn("record has no valid state, skipping")
		return rec, nil
	}

	elapsed := time.Since(start)
	m.recorder.Step(step, elapsed)
	if err != nil {
		log.Warn("handler failed", "error", err, "duration", elapsed.Round(time.Millisecond))
		return rec, err
	}
	log.Info("handler finished", "new_state", rec.State.String(), "duration", elapsed.Round(time.Millisecond))
	return rec, nil
}

// annotate appends a rendered line to the sponsoring request's comment.
// Failures are logged; annotations never block a transition.
func (m *Machine) annotate(ctx context.Context, rec *Record, tmpl, prefix string, log *slog.Logger) {
	if rec.Comment == nil {
		log.Info("no comment to annotate on sponsoring request",
			"repo", rec.SponsorRepo, "number", rec.SponsorNumber, "template", tmpl)
		return
	}

	approvalURL := ""
	if rec.Review != nil {
		approvalURL = rec.Review.HTMLURL
	}
	line, err := m.messages.Render(tmpl, map[string]any{
		"date":        m.now().UTC().Format(message.DateFormat),
		"tarball":     rec.Name(),
		"approval_pr": approvalURL,
		"prefix":      prefix,
	})
	if err != nil {
		log.Warn("failed to render annotation", "error", err, "template", tmpl)
		return
	}

	current, err := m.cache.Comment(ctx, rec.SponsorRepo, rec.SponsorNumber, rec.Comment.ID)
	if err != nil {
		log.Warn("failed to fetch comment", "error", err, "comment_id", rec.Comment.ID)
		return
	}
	edited, err := m.provider.EditComment(ctx, rec.SponsorRepo, rec.SponsorNumber, current.ID, current.Body+"\n"+line)
	if err != nil {
		log.Warn("failed to update comment", "error", err, "comment_id", current.ID)
		return
	}
	m.cache.Put(edited)
	rec.Comment = edited
	log.Info("annotated sponsoring request", "comment_id", edited.ID, "line", line)
}

// emit sends a lifecycle event. Delivery failures are logged.
func (m *Machine) emit(ctx context.Context, rec *Record, typ notify.EventType, severity, msg string, meta map[string]any) {
	event := notify.Event{
		Type:      typ,
		RunID:     m.runID,
		Tarball:   rec.PayloadKey,
		Message:   msg,
		Severity:  severity,
		Timestamp: m.now(),
		Metadata:  meta,
	}
	if err := m.notifier.Notify(ctx, event); err != nil {
		m.logger.Warn("notification failed", "error", err, "event_type", typ, "tarball", rec.PayloadKey)
	}
}

func (m *Machine) render(name string, vars map[string]any) (string, error) {
	text, err := m.messages.Render(name, vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return text, nil
}
