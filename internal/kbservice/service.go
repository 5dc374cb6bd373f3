// Package kbservice coordinates the record store, the persistence manager,
// and the embedding client behind the operations the tool layer exposes.
// Every accepted mutation is followed by a durable flush.
package kbservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/embedding"
	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/store"
)

var (
	kebabIDRe   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	sessionIDRe = regexp.MustCompile(`^session-\d{3}$`)
)

// protectedPrefixes mark list-managed entries that must be edited through
// ListAdd/ListRemove, never by direct upsert.
var protectedPrefixes = []string{"todo-", "accumulator-"}

// Embedder generates a semantic vector for a text. *embedding.Client
// satisfies it; tests substitute a fixture.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Flusher persists the store after a mutation. *persist.Manager satisfies it.
type Flusher interface {
	Flush() error
}

// Service owns no state beyond the current session number; the store handle
// is borrowed from the persistence manager per process.
type Service struct {
	db       *store.DB
	flusher  Flusher
	embedder Embedder // nil disables embedding generation
	logger   *slog.Logger
	session  atomic.Int64
}

// New creates a service. embedder may be nil.
func New(db *store.DB, flusher Flusher, embedder Embedder, logger *slog.Logger) *Service {
	return &Service{db: db, flusher: flusher, embedder: embedder, logger: logger}
}

// SetSession sets the session number stamped on access-log rows.
func (s *Service) SetSession(n int64) { s.session.Store(n) }

// Session returns the current session number, 0 when unset.
func (s *Service) Session() int64 { return s.session.Load() }

// UpsertInput is the full-field write payload. Upsert is the only content
// write path: first write for an id creates, later writes replace.
type UpsertInput struct {
	ID                string
	Category          string
	Title             string
	Content           string
	Tags              []string
	Metadata          map[string]interface{}
	GenerateEmbedding bool
}

func (in UpsertInput) validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Required,
			validation.Match(kebabIDRe).Error("must be kebab-case")),
		validation.Field(&in.Category, validation.Required),
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	if in.Category == "log" && !sessionIDRe.MatchString(in.ID) {
		return fmt.Errorf("%w: log entries must use id session-NNN, got %q",
			apperr.ErrValidation, in.ID)
	}
	return nil
}

// Upsert validates and writes an entry, generating an embedding best-effort
// when a client is configured. Returns true when the entry was created
// rather than updated.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (created bool, err error) {
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(in.ID, prefix) {
			return false, fmt.Errorf("%w: %q is list-managed, use list_add/list_remove",
				apperr.ErrProtectedEntry, in.ID)
		}
	}
	if err := in.validate(); err != nil {
		return false, err
	}

	exists, err := s.db.Exists(in.ID)
	if err != nil {
		return false, err
	}

	var vec []float32
	if in.GenerateEmbedding && s.embedder != nil {
		text := embedding.EntryText(in.Title, in.Tags, in.Content)
		if vec, err = s.embedder.Embed(ctx, text); err != nil {
			// Embedding generation never blocks a write.
			s.logger.Warn("embedding generation failed",
				slog.String("id", in.ID), slog.String("error", err.Error()))
			vec = nil
		}
	}

	now := time.Now().UTC()
	entry := &models.Entry{
		ID:        in.ID,
		Category:  in.Category,
		Title:     in.Title,
		Tags:      in.Tags,
		Content:   in.Content,
		Metadata:  in.Metadata,
		Embedding: vec,
		Created:   now,
		Updated:   now,
	}
	if err := s.db.Upsert(entry); err != nil {
		return false, err
	}

	_ = s.db.LogAccess(s.Session(), "upsert", []string{in.ID})
	if err := s.flusher.Flush(); err != nil {
		return false, err
	}
	return !exists, nil
}

// Related is one edge of an entry's neighborhood in the link graph.
type Related struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	LinkType string `json:"link_type"`
	Inbound  bool   `json:"inbound"`
}

// Get returns an entry and, when requested, its related entries. Dangling
// links are skipped, not errors.
func (s *Service) Get(id string, includeRelated bool) (*models.Entry, []Related, error) {
	entry, err := s.db.Get(id)
	if err != nil {
		return nil, nil, err
	}
	_ = s.db.LogAccess(s.Session(), "get", []string{id})

	if !includeRelated {
		return entry, nil, nil
	}

	links, err := s.db.LinksFor(id)
	if err != nil {
		return nil, nil, err
	}
	var related []Related
	for _, l := range links {
		other := l.ToID
		inbound := false
		if other == id {
			other = l.FromID
			inbound = true
		}
		target, err := s.db.Get(other)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		related = append(related, Related{
			ID:       target.ID,
			Title:    target.Title,
			Category: target.Category,
			LinkType: l.Type,
			Inbound:  inbound,
		})
	}
	return entry, related, nil
}

// Delete removes an entry, cascading to its links.
func (s *Service) Delete(id string) error {
	if err := s.db.Delete(id); err != nil {
		return err
	}
	_ = s.db.LogAccess(s.Session(), "delete", []string{id})
	return s.flusher.Flush()
}

// List returns entry summaries matching the filter, newest first.
func (s *Service) List(f store.ListFilter) ([]models.EntrySummary, error) {
	return s.db.List(f)
}

// Search runs a full-text search and logs the touched ids.
func (s *Service) Search(query string, limit int, includeTranscripts bool) ([]models.EntrySummary, error) {
	results, err := s.db.Search(query, limit, includeTranscripts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	_ = s.db.LogAccess(s.Session(), "scan", ids)
	return results, nil
}

// FindSimilar embeds the query text and ranks entries by cosine similarity,
// restricted by the filter's category, tags, and date predicates.
func (s *Service) FindSimilar(ctx context.Context, query string, f store.SimilarFilter) ([]models.EntrySummary, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("kbservice: %w: no embedding client configured", apperr.ErrNoEmbeddings)
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("kbservice: embed query: %w", err)
	}
	results, err := s.db.SearchSimilar(vec, f)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	_ = s.db.LogAccess(s.Session(), "scan", ids)
	return results, nil
}

// AddLink validates both endpoints and records the relation. Re-adding an
// existing pair is a no-op.
func (s *Service) AddLink(fromID, toID, linkType string) error {
	for _, id := range []string{fromID, toID} {
		exists, err := s.db.Exists(id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("kbservice: link endpoint %q: %w", id, apperr.ErrNotFound)
		}
	}
	if err := s.db.AddLink(fromID, toID, linkType); err != nil {
		return err
	}
	return s.flusher.Flush()
}

// GenerateEmbeddings backfills vectors for the given ids, or for every
// entry missing one (all entries when regenerate is set).
func (s *Service) GenerateEmbeddings(ctx context.Context, ids []string, regenerate bool) (updated int, err error) {
	if s.embedder == nil {
		return 0, fmt.Errorf("kbservice: %w: no embedding client configured", apperr.ErrNoEmbeddings)
	}

	entries, err := s.db.All()
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	for i := range entries {
		e := &entries[i]
		switch {
		case len(ids) > 0:
			if !wanted[e.ID] {
				continue
			}
		case !regenerate && e.HasEmbedding():
			continue
		}

		text := embedding.EntryText(e.Title, e.Tags, e.Content)
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return updated, fmt.Errorf("kbservice: embed %q: %w", e.ID, err)
		}
		if err := s.db.SetEmbedding(e.ID, vec, time.Now().UTC()); err != nil {
			return updated, err
		}
		updated++
	}

	if updated > 0 {
		if err := s.flusher.Flush(); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// Stats returns aggregate store counters.
func (s *Service) Stats(detailed bool) (*store.Stats, error) {
	return s.db.Stats(detailed)
}

// RawQuery runs a caller-supplied SELECT; execution errors come back as
// data for the tool layer, never as a crash.
func (s *Service) RawQuery(query string) ([]map[string]interface{}, error) {
	return s.db.RawQuery(query)
}
