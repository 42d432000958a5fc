package traces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"agenttrace-backend/internal/sanitize"
	"agenttrace-backend/internal/shared/metrics"
	"agenttrace-backend/internal/shared/storage/object"
	"agenttrace-backend/internal/shared/telemetry"
	"agenttrace-backend/internal/shared/util"
	"agenttrace-backend/internal/usage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 50
	maxSearchResults = 50
	searchScanLimit  = 500
	minQueryChars    = 2
	snippetChars     = 200
)

// Quota is the slice of plan enforcement ingestion needs.
type Quota interface {
	CanCreateTrace(ctx context.Context, userID string) error
	RecordTrace(ctx context.Context, userID string) error
}

// Service handles trace ingestion and access.
type Service struct {
	Repo       Repo // owned traces
	Guests     Repo // guest traces, process-local
	Normalizer *Normalizer
	Sanitizer  *sanitize.Sanitizer
	Quota      Quota
	Archive    object.ObjectStore
	Now        func() time.Time
}

// NewService constructs a Service. Guest traces go to a fresh MemoryRepo.
func NewService(repo Repo, quota Quota, archive object.ObjectStore) *Service {
	return &Service{
		Repo:       repo,
		Guests:     NewMemoryRepo(),
		Normalizer: NewNormalizer(),
		Sanitizer:  sanitize.New(),
		Quota:      quota,
		Archive:    archive,
		Now:        time.Now,
	}
}

// IngestInput is one submitted trace.
type IngestInput struct {
	Payload      any
	OwnerID      string
	OwnerEmail   string
	GuestSession string
	Name         string
	Description  string
	IsPublic     bool
	// FileName is set for file uploads; owned uploads are archived.
	FileName string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Ingest validates, sanitizes, normalizes and stores a trace.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (Trace, error) {
	if err := ValidatePayload(in.Payload); err != nil {
		return Trace{}, err
	}

	sanitizer := s.Sanitizer
	if sanitizer == nil {
		sanitizer = sanitize.New()
	}
	clean := sanitizer.Value(in.Payload)

	trace, err := s.Normalizer.Normalize(clean)
	if err != nil {
		return Trace{}, err
	}

	owner := strings.TrimSpace(in.OwnerID)
	if owner != "" && s.Quota != nil {
		if err := s.Quota.CanCreateTrace(ctx, owner); err != nil {
			if errors.Is(err, usage.ErrLimitReached) {
				return Trace{}, fmt.Errorf("%w: %s", ErrQuotaExceeded, err.Error())
			}
			return Trace{}, fmt.Errorf("check quota: %w", err)
		}
	}

	trace.UserID = owner
	trace.Name = sanitizer.String(strings.TrimSpace(in.Name))
	trace.Description = sanitizer.String(strings.TrimSpace(in.Description))
	trace.IsPublic = in.IsPublic && owner != ""

	source := "api"
	if in.FileName != "" {
		source = "file"
		secureName, err := util.SecureFileName(in.FileName, s.now())
		if err != nil {
			return Trace{}, fmt.Errorf("%w: %v", ErrInvalidFileType, err)
		}
		if trace.Name == "" {
			trace.Name = secureName
		}
		trace.Metadata["source_file"] = secureName
		if owner != "" && s.Archive != nil {
			key, err := s.archive(ctx, owner, secureName, clean)
			if err != nil {
				return Trace{}, err
			}
			trace.Metadata["archive_key"] = key
		}
	}

	repo := s.Repo
	if owner == "" {
		repo = s.Guests
		source += "_guest"
		trace.Metadata["guest"] = true
		if in.GuestSession != "" {
			trace.Metadata["guest_session"] = util.HashUserKey(in.GuestSession)
		}
	} else if in.OwnerEmail != "" {
		trace.Metadata["uploaded_by"] = in.OwnerEmail
	}

	if err := repo.Put(ctx, trace); err != nil {
		return Trace{}, fmt.Errorf("store trace: %w", err)
	}

	if owner != "" && s.Quota != nil {
		if err := s.Quota.RecordTrace(ctx, owner); err != nil {
			telemetry.Warn("usage.record_failed", map[string]any{
				"trace_id": trace.ID,
				"user_id":  owner,
				"error":    err.Error(),
			})
		}
	}

	metrics.IncTraceIngested(source)
	telemetry.Info("trace.ingested", map[string]any{
		"trace_id":    trace.ID,
		"source":      source,
		"step_count":  len(trace.Steps),
		"error_count": trace.ErrorCount,
	})
	return trace, nil
}

func (s *Service) archive(ctx context.Context, owner, fileName string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	key, _, err := s.Archive.Save(ctx, owner, fileName, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("archive upload: %w", err)
	}
	return key, nil
}

// Lookup returns a trace by id without access checks.
func (s *Service) Lookup(ctx context.Context, id string) (Trace, error) {
	if s.Guests != nil {
		trace, err := s.Guests.Get(ctx, id)
		if err == nil {
			return trace, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Trace{}, err
		}
	}
	return s.Repo.Get(ctx, id)
}

// Get returns a trace the viewer is allowed to read.
func (s *Service) Get(ctx context.Context, id string, viewer Viewer) (Trace, error) {
	trace, err := s.Lookup(ctx, id)
	if err != nil {
		return Trace{}, err
	}
	if err := authorize(trace, viewer); err != nil {
		return Trace{}, err
	}
	return trace, nil
}

func authorize(trace Trace, viewer Viewer) error {
	if trace.IsGuest() || trace.IsPublic {
		return nil
	}
	if viewer.UserID == "" {
		return ErrUnauthenticated
	}
	if viewer.UserID != trace.UserID {
		return ErrForbidden
	}
	return nil
}

// List returns the viewer's traces, newest first. Anonymous viewers see the
// traces of their guest session only.
func (s *Service) List(ctx context.Context, viewer Viewer, limit, offset int) ([]Trace, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	if viewer.UserID != "" {
		return s.Repo.ListByOwner(ctx, viewer.UserID, limit, offset)
	}
	if viewer.GuestSession == "" || s.Guests == nil {
		return []Trace{}, nil
	}

	all, err := s.Guests.ListByOwner(ctx, "", 0, 0)
	if err != nil {
		return nil, err
	}
	want := util.HashUserKey(viewer.GuestSession)
	session := make([]Trace, 0, len(all))
	for _, trace := range all {
		if sid, _ := trace.Metadata["guest_session"].(string); sid == want {
			session = append(session, trace)
		}
	}
	if offset >= len(session) {
		return []Trace{}, nil
	}
	end := offset + limit
	if end > len(session) {
		end = len(session)
	}
	return session[offset:end], nil
}

// Search finds steps whose content or error contains q, case-insensitively.
func (s *Service) Search(ctx context.Context, ownerID, q string) ([]SearchResult, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if utf8.RuneCountInString(q) < minQueryChars {
		return []SearchResult{}, nil
	}

	traces, err := s.Repo.ListByOwner(ctx, ownerID, searchScanLimit, 0)
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	for _, trace := range traces {
		for _, step := range trace.Steps {
			var text string
			switch {
			case strings.Contains(strings.ToLower(step.Content), q):
				text = step.Content
			case step.Error != "" && strings.Contains(strings.ToLower(step.Error), q):
				text = step.Error
			default:
				continue
			}
			results = append(results, SearchResult{
				TraceID:   trace.ID,
				StepID:    step.ID,
				Snippet:   snippet(text),
				TraceName: trace.Name,
			})
			if len(results) >= maxSearchResults {
				return results, nil
			}
		}
	}
	return results, nil
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetChars {
		return text
	}
	return string([]rune(text)[:snippetChars]) + "..."
}

// SetVisibility flips the public flag on a trace the caller owns.
func (s *Service) SetVisibility(ctx context.Context, id, ownerID string, public bool) (Trace, error) {
	trace, err := s.Lookup(ctx, id)
	if err != nil {
		return Trace{}, err
	}
	if trace.IsGuest() || trace.UserID != ownerID {
		return Trace{}, ErrForbidden
	}
	trace.IsPublic = public
	if err := s.Repo.Put(ctx, trace); err != nil {
		return Trace{}, fmt.Errorf("update visibility: %w", err)
	}
	telemetry.Info("trace.visibility_changed", map[string]any{
		"trace_id":  id,
		"is_public": public,
	})
	return trace, nil
}

// Raw opens the archived upload behind a trace.
func (s *Service) Raw(ctx context.Context, id string, viewer Viewer) (io.ReadCloser, Trace, error) {
	trace, err := s.Get(ctx, id, viewer)
	if err != nil {
		return nil, Trace{}, err
	}
	key, _ := trace.Metadata["archive_key"].(string)
	if key == "" || s.Archive == nil {
		return nil, Trace{}, ErrNoArchive
	}
	rc, err := s.Archive.Open(ctx, key)
	if err != nil {
		return nil, Trace{}, fmt.Errorf("open archive: %w", err)
	}
	return rc, trace, nil
}
