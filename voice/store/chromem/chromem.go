// Package chromem implements the voice.Store interface over chromem-go, a
// pure-Go embedded vector database. One chromem collection backs each
// namespace.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/CylentisAI/Inbox-scout/voice"
)

// Store is an embedded, namespaced vector store.
type Store struct {
	db          *chromem.DB
	collections map[voice.Namespace]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an in-memory store.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[voice.Namespace]*chromem.Collection),
	}, nil
}

// NewPersistent creates a store backed by files under path, so learned
// patterns survive restarts.
func NewPersistent(path string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: open persistent db: %v", voice.ErrStoreUnavailable, err)
	}
	return &Store{
		db:          db,
		collections: make(map[voice.Namespace]*chromem.Collection),
	}, nil
}

func (s *Store) collection(ns voice.Namespace) (*chromem.Collection, error) {
	if !ns.Valid() {
		return nil, fmt.Errorf("%w: unknown namespace %q", voice.ErrInvalidInput, ns)
	}

	s.mu.RLock()
	col, ok := s.collections[ns]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[ns]; ok {
		return col, nil
	}

	// No embedding func: callers always provide vectors, which is what keeps
	// stored text and embedding from drifting apart.
	col, err := s.db.GetOrCreateCollection("ns_"+string(ns), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection %q: %v", voice.ErrStoreUnavailable, ns, err)
	}
	s.collections[ns] = col
	return col, nil
}

// Upsert writes rec, replacing any existing record with the same id.
func (s *Store) Upsert(ctx context.Context, ns voice.Namespace, rec voice.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record id is empty", voice.ErrInvalidInput)
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("%w: record %q has no embedding", voice.ErrInvalidInput, rec.ID)
	}

	col, err := s.collection(ns)
	if err != nil {
		return err
	}

	// Delete first so a re-upsert replaces vector and metadata instead of
	// relying on chromem's overwrite behavior.
	if err := col.Delete(ctx, nil, nil, rec.ID); err != nil {
		log.Printf("[STORE] pre-upsert delete of %s/%s: %v", ns, rec.ID, err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	metadata := map[string]string{
		"created_at": createdAt.Format(time.RFC3339),
	}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   voice.Truncate(rec.Text, voice.MaxStoredText),
		Embedding: rec.Embedding,
		Metadata:  metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: add document %q: %v", voice.ErrStoreUnavailable, rec.ID, err)
	}
	return nil
}

// Query returns the topK most similar records, optionally narrowed by a
// metadata equality filter. An empty namespace yields an empty result, not
// an error.
func (s *Store) Query(ctx context.Context, ns voice.Namespace, embedding []float32, topK int, filter voice.Filter) ([]voice.QueryResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	col, err := s.collection(ns)
	if err != nil {
		return nil, err
	}

	var where map[string]string
	if len(filter) > 0 {
		where = map[string]string(filter)
	}

	// chromem rejects nResults larger than the (filtered) document count, so
	// shrink until the query fits.
	var results []chromem.Result
	for limit := topK; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, where, nil)
		if err == nil {
			break
		}
		if isTooFewDocs(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("%w: query %q: %v", voice.ErrStoreUnavailable, ns, err)
	}

	out := make([]voice.QueryResult, 0, len(results))
	for _, r := range results {
		out = append(out, voice.QueryResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Text:     r.Content,
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

// Delete removes records by id, best-effort.
func (s *Store) Delete(ctx context.Context, ns voice.Namespace, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := s.collection(ns)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		// Missing ids are not an error; anything chromem does report here is.
		return fmt.Errorf("%w: delete from %q: %v", voice.ErrStoreUnavailable, ns, err)
	}
	return nil
}

// Close releases resources. chromem keeps everything in memory (or already
// flushed to disk for the persistent variant); nothing to do.
func (s *Store) Close() error {
	return nil
}

func isTooFewDocs(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
