package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/randalmurphal/ingestflow/review"
	"github.com/randalmurphal/ingestflow/store"
)

// PayloadPrefix is the top-level prefix payload objects are stored under.
const PayloadPrefix = "tarballs"

// Record is one tracked tarball as seen in the current run.
type Record struct {
	// PayloadKey is the store key of the tarball; it never changes.
	PayloadKey string
	// MetadataKey is the store key of the metadata object. Its first
	// segment is the current state.
	MetadataKey string
	State       State
	// ETag is the metadata object's ETag as listed at the start of the run.
	ETag string
	// URL locates the payload for humans.
	URL string

	// Local copies. Empty when the download failed.
	LocalPayload  string
	LocalMetadata string

	MetadataRaw []byte
	Uploader    string
	Filename    string
	Size        int64
	Checksum    string

	// Sponsoring request, from the link2pr section of the metadata.
	SponsorRepo      string
	SponsorNumber    int
	SponsorCommentID int64

	Sponsor *review.PullRequest
	Comment *review.Comment
	// Review is the review request, once known.
	Review *review.PullRequest

	suffix string
}

// Sources are the collaborators a record is built from.
type Sources struct {
	Store          store.Store
	Cache          *Cache
	DownloadDir    string
	MetadataSuffix string
	Logger         *slog.Logger
}

func (s Sources) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type metadataDoc struct {
	Uploader struct {
		Username string `json:"username"`
	} `json:"uploader"`
	Payload struct {
		Filename  string      `json:"filename"`
		Size      json.Number `json:"size"`
		SHA256Sum string      `json:"sha256sum"`
	} `json:"payload"`
	Link2PR struct {
		Repo        string      `json:"repo"`
		PR          json.Number `json:"pr"`
		PRCommentID json.Number `json:"pr_comment_id"`
	} `json:"link2pr"`
}

// NewRecord builds the record for payloadKey in state. It downloads the
// payload and metadata, parses the metadata and resolves the sponsoring
// request through the cache. It never fails: anything missing is logged
// and left at its zero value (-1 for sponsor number and comment id).
func NewRecord(ctx context.Context, src Sources, payloadKey string, state State, obj store.Object) *Record {
	rec := &Record{
		PayloadKey:       payloadKey,
		State:            state,
		ETag:             obj.ETag,
		SponsorNumber:    -1,
		SponsorCommentID: -1,
		suffix:           src.MetadataSuffix,
	}
	rec.MetadataKey = rec.KeyFor(state)
	rec.LocalPayload = filepath.Join(src.DownloadDir, path.Base(payloadKey))
	rec.LocalMetadata = rec.LocalPayload + src.MetadataSuffix
	if src.Store != nil {
		rec.URL = src.Store.URL(payloadKey)
	}

	log := src.logger().With("tarball", payloadKey, "state", state)

	start := time.Now()
	rec.Download(ctx, src.Store, false, log)
	elapsed := time.Since(start)

	if rec.LocalMetadata == "" {
		log.Warn("metadata not available, record left incomplete")
		return rec
	}
	if err := rec.loadMetadata(); err != nil {
		log.Warn("failed to parse metadata", "error", err, "path", rec.LocalMetadata)
		return rec
	}
	log.Info("record loaded",
		"filename", rec.Filename,
		"size", humanize.Bytes(uint64(max(rec.Size, 0))),
		"download", elapsed.Round(time.Millisecond))

	if src.Cache != nil {
		rec.resolveSponsor(ctx, src.Cache, log)
	}
	return rec
}

// Branch is the review-repository branch of the tarball: its file name.
func (r *Record) Branch() string {
	return path.Base(r.PayloadKey)
}

// RelPath is the metadata path below the state prefix.
func (r *Record) RelPath() string {
	_, rel, ok := strings.Cut(r.PayloadKey, "/")
	if !ok {
		rel = r.PayloadKey
	}
	return rel + r.suffix
}

// KeyFor returns the metadata key the record has in state s.
func (r *Record) KeyFor(s State) string {
	return s.String() + "/" + r.RelPath()
}

// Name is the tarball name used in messages: the metadata's payload file
// name, or the branch name when the metadata has none.
func (r *Record) Name() string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.Branch()
}

// Download fetches payload and metadata into their local paths. Files
// already present are kept unless force is set. A failed download clears
// the corresponding local path.
func (r *Record) Download(ctx context.Context, st store.Store, force bool, log *slog.Logger) {
	if st == nil {
		r.LocalPayload, r.LocalMetadata = "", ""
		return
	}
	r.LocalPayload = fetch(ctx, st, r.PayloadKey, r.LocalPayload, force, log)
	r.LocalMetadata = fetch(ctx, st, r.MetadataKey, r.LocalMetadata, force, log)
}

func fetch(ctx context.Context, st store.Store, key, local string, force bool, log *slog.Logger) string {
	if local == "" {
		return ""
	}
	if !force {
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		log.Warn("failed to create download directory", "error", err, "path", local)
		return ""
	}
	if err := st.Download(ctx, key, local); err != nil {
		log.Warn("download failed", "error", err, "key", key, "path", local)
		return ""
	}
	return local
}

func (r *Record) loadMetadata() error {
	raw, err := os.ReadFile(r.LocalMetadata)
	if err != nil {
		return err
	}
	r.MetadataRaw = raw

	var doc metadataDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", r.LocalMetadata, err)
	}

	r.Uploader = doc.Uploader.Username
	r.Filename = doc.Payload.Filename
	r.Checksum = strings.TrimSpace(doc.Payload.SHA256Sum)
	r.SponsorRepo = doc.Link2PR.Repo
	if n, err := doc.Payload.Size.Int64(); err == nil {
		r.Size = n
	}
	if n, err := doc.Link2PR.PR.Int64(); err == nil {
		r.SponsorNumber = int(n)
	}
	if n, err := doc.Link2PR.PRCommentID.Int64(); err == nil {
		r.SponsorCommentID = n
	}
	return nil
}

func (r *Record) resolveSponsor(ctx context.Context, cache *Cache, log *slog.Logger) {
	if r.SponsorRepo == "" || r.SponsorNumber <= 0 {
		log.Warn("metadata names no sponsoring request")
		return
	}
	if _, err := cache.Repository(ctx, r.SponsorRepo); err != nil {
		log.Warn("sponsor repository lookup failed", "error", err, "repo", r.SponsorRepo)
		return
	}
	pr, err := cache.PullRequest(ctx, r.SponsorRepo, r.SponsorNumber)
	if err != nil {
		log.Warn("sponsor request lookup failed", "error", err, "repo", r.SponsorRepo, "number", r.SponsorNumber)
		return
	}
	r.Sponsor = pr

	if r.SponsorCommentID > 0 {
		comment, err := cache.Comment(ctx, r.SponsorRepo, r.SponsorNumber, r.SponsorCommentID)
		if err != nil {
			log.Warn("sponsor comment lookup failed", "error", err, "comment_id", r.SponsorCommentID)
			return
		}
		r.Comment = comment
		return
	}

	comment, err := findComment(ctx, cache, r.SponsorRepo, r.SponsorNumber, r.Name())
	if err != nil {
		log.Warn("no comment id in metadata and none mentions the tarball", "error", err)
		return
	}
	r.Comment = comment
}

// findComment returns the first comment of repo#number that mentions name.
func findComment(ctx context.Context, cache *Cache, repo string, number int, name string) (*review.Comment, error) {
	comments, err := cache.provider.ListComments(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		if strings.Contains(c.Body, name) {
			cache.Put(c)
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s#%d", ErrNoComment, name, repo, number)
}

// requireMetadata reports ErrIncomplete unless the record carries what a
// handler needs to act on it.
func (r *Record) requireMetadata(payload bool) error {
	var missing []string
	if payload && r.LocalPayload == "" {
		missing = append(missing, "payload")
	}
	if r.LocalMetadata == "" || len(r.MetadataRaw) == 0 {
		missing = append(missing, "metadata")
	}
	if r.Checksum == "" {
		missing = append(missing, "payload.sha256sum")
	}
	if r.SponsorRepo == "" || r.SponsorNumber <= 0 {
		missing = append(missing, "link2pr")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s missing %s", ErrIncomplete, r.PayloadKey, strings.Join(missing, ", "))
	}
	return nil
}

// LogValue implements slog.LogValuer; verbose runs dump records with it.
func (r *Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("payload_key", r.PayloadKey),
		slog.String("metadata_key", r.MetadataKey),
		slog.String("state", r.State.String()),
		slog.String("etag", r.ETag),
		slog.String("local_payload", r.LocalPayload),
		slog.String("local_metadata", r.LocalMetadata),
		slog.String("filename", r.Filename),
		slog.String("size", humanize.Bytes(uint64(max(r.Size, 0)))),
		slog.String("uploader", r.Uploader),
		slog.String("sponsor", fmt.Sprintf("%s#%d", r.SponsorRepo, r.SponsorNumber)),
		slog.Int64("comment_id", r.SponsorCommentID),
		slog.String("url", r.URL),
	)
}
