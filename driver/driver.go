package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	ingesterrors "github.com/randalmurphal/ingestflow/errors"
	"github.com/randalmurphal/ingestflow/lifecycle"
	"github.com/randalmurphal/ingestflow/message"
	"github.com/randalmurphal/ingestflow/notify"
	"github.com/randalmurphal/ingestflow/store"
)

// Syncer refreshes the local review-repository clone. *git.Mirror
// implements it.
type Syncer interface {
	Sync(refspecs ...string) error
}

// Config wires a Driver.
type Config struct {
	Store          store.Store
	Machine        *lifecycle.Machine
	Mirror         Syncer
	PullRefSpec    string // extra refspec fetched on every sync
	DownloadDir    string
	MetadataSuffix string

	// Optional.
	Messages *message.Renderer
	Notifier notify.Notifier
	Logger   *slog.Logger
	RunID    string
	Output   io.Writer // list-only table, default stdout
}

// Options select what a run processes.
type Options struct {
	// States to process, in order. Empty means every state.
	States []lifecycle.State
	// Pattern filters payload keys; it must match at the start of the key.
	Pattern *regexp.Regexp
	// ListOnly prints the matching tarballs without processing them.
	ListOnly bool
	// Verbose logs every record before it is processed.
	Verbose bool
}

// Summary counts what a run did.
type Summary struct {
	Listed      int
	Processed   int
	Failed      int
	Consistency int // failures that left the two systems disagreeing
	Moved       int
	Duration    time.Duration
}

// Driver enumerates tarballs per state and hands them to the machine.
type Driver struct {
	store          store.Store
	machine        *lifecycle.Machine
	mirror         Syncer
	refspec        string
	downloadDir    string
	metadataSuffix string
	messages       *message.Renderer
	notifier       notify.Notifier
	logger         *slog.Logger
	runID          string
	out            io.Writer
}

// New validates cfg and creates a Driver.
func New(cfg Config) (*Driver, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("driver: store is required")
	case cfg.Machine == nil:
		return nil, errors.New("driver: machine is required")
	case cfg.Mirror == nil:
		return nil, errors.New("driver: mirror is required")
	case cfg.MetadataSuffix == "":
		return nil, errors.New("driver: metadata suffix is required")
	}

	d := &Driver{
		store:          cfg.Store,
		machine:        cfg.Machine,
		mirror:         cfg.Mirror,
		refspec:        cfg.PullRefSpec,
		downloadDir:    cfg.DownloadDir,
		metadataSuffix: cfg.MetadataSuffix,
		messages:       cfg.Messages,
		notifier:       cfg.Notifier,
		logger:         cfg.Logger,
		runID:          cfg.RunID,
		out:            cfg.Output,
	}
	if d.notifier == nil {
		d.notifier = notify.NopNotifier{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.out == nil {
		d.out = os.Stdout
	}
	return d, nil
}

// CompilePattern compiles a tarball filter. The expression is anchored at
// the start of the payload key.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return re, nil
}

// PayloadKey maps a metadata key to the key of its payload: the state
// prefix becomes tarballs/ and the metadata suffix is dropped. It returns
// false for keys that are not metadata objects.
func PayloadKey(metadataKey, suffix string) (string, bool) {
	if !strings.HasSuffix(metadataKey, suffix) {
		return "", false
	}
	_, rest, ok := strings.Cut(metadataKey, "/")
	if !ok || rest == suffix {
		return "", false
	}
	return path.Join(lifecycle.PayloadPrefix, strings.TrimSuffix(rest, suffix)), true
}

// Run processes every selected state once. Failures of single tarballs are
// logged and counted; only problems that affect the whole run (such as a
// failed mirror sync) are returned.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	states := opts.States
	if len(states) == 0 {
		states = lifecycle.AllStates()
	}

	start := time.Now()
	summary := &Summary{}
	var listing []listRow

	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !opts.ListOnly && state.Terminal() {
			continue
		}

		if !opts.ListOnly {
			if err := d.mirror.Sync(d.syncSpecs()...); err != nil {
				return summary, fmt.Errorf("sync review repository: %w", err)
			}
		}

		objects, err := d.store.List(ctx, state.String()+"/")
		if err != nil {
			d.logger.Error("failed to list tarballs", "error", err, "state", state.String())
			summary.Failed++
			continue
		}

		for _, obj := range objects {
			payloadKey, ok := PayloadKey(obj.Key, d.metadataSuffix)
			if !ok {
				continue
			}
			if opts.Pattern != nil && !opts.Pattern.MatchString(payloadKey) {
				continue
			}
			summary.Listed++

			if opts.ListOnly {
				listing = append(listing, listRow{state: state, key: payloadKey, size: obj.Size, modified: obj.LastModified})
				continue
			}
			d.process(ctx, state, payloadKey, obj, opts.Verbose, summary)
		}
	}

	summary.Duration = time.Since(start)
	if opts.ListOnly {
		_, err := fmt.Fprintln(d.out, renderListing(listing))
		return summary, err
	}

	d.logger.Info("run finished",
		"processed", summary.Processed,
		"moved", summary.Moved,
		"failed", summary.Failed,
		"duration", summary.Duration.Round(time.Millisecond))
	d.notifySummary(ctx, summary)
	return summary, nil
}

func (d *Driver) syncSpecs() []string {
	if d.refspec == "" {
		return nil
	}
	return []string{d.refspec}
}

func (d *Driver) process(ctx context.Context, state lifecycle.State, payloadKey string, obj store.Object, verbose bool, summary *Summary) {
	rec := lifecycle.NewRecord(ctx, lifecycle.Sources{
		Store:          d.store,
		Cache:          d.machine.Cache(),
		DownloadDir:    d.downloadDir,
		MetadataSuffix: d.metadataSuffix,
		Logger:         d.logger,
	}, payloadKey, state, obj)

	if verbose {
		d.logger.Info("processing tarball", "record", rec)
	}

	summary.Processed++
	rec, err := d.machine.Run(ctx, rec)
	if rec.State != state {
		summary.Moved++
	}
	if err == nil {
		return
	}

	summary.Failed++
	if ingesterrors.IsConsistencyError(err) {
		summary.Consistency++
		d.logger.Error("tarball left for manual inspection", "error", err, "tarball", payloadKey, "state", state.String())
		return
	}
	d.logger.Warn("failed to process tarball", "error", err, "tarball", payloadKey, "state", state.String())
}

func (d *Driver) notifySummary(ctx context.Context, summary *Summary) {
	if summary.Processed == 0 {
		return
	}

	text := fmt.Sprintf("Ingestion run %s finished: %d processed, %d failed.", d.runID, summary.Processed, summary.Failed)
	if d.messages != nil {
		rendered, err := d.messages.Render(message.RunSummary, map[string]any{
			"run_id":    d.runID,
			"processed": summary.Processed,
			"failed":    summary.Failed,
		})
		if err != nil {
			d.logger.Warn("failed to render run summary", "error", err)
		} else {
			text = rendered
		}
	}

	severity := notify.SeverityInfo
	if summary.Failed > 0 {
		severity = notify.SeverityWarning
	}
	err := d.notifier.Notify(ctx, notify.Event{
		Type:      notify.EventRunCompleted,
		RunID:     d.runID,
		Message:   text,
		Severity:  severity,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"processed":   summary.Processed,
			"moved":       summary.Moved,
			"failed":      summary.Failed,
			"consistency": summary.Consistency,
			"duration":    summary.Duration.String(),
		},
	})
	if err != nil {
		d.logger.Warn("notification failed", "error", err, "event_type", notify.EventRunCompleted)
	}
}
