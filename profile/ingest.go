package profile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/CylentisAI/Inbox-scout/voice"
)

// IngestConfig paces the embedding calls. Documents are processed strictly
// sequentially: concurrency would trade quota safety for throughput.
type IngestConfig struct {
	// DocumentDelay is the fixed pause between documents.
	DocumentDelay time.Duration

	// ErrorDelay is the longer pause after a non-quota failure, to avoid
	// cascading into the provider while it's unhappy.
	ErrorDelay time.Duration
}

// DefaultIngestConfig returns the standard pacing.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		DocumentDelay: 100 * time.Millisecond,
		ErrorDelay:    500 * time.Millisecond,
	}
}

// Result reports an ingestion run. Aborted with a non-nil error from Ingest
// is the distinguishable "partial ingestion" outcome.
type Result struct {
	Profile   *VoiceProfile
	Processed int
	Skipped   int
	Aborted   bool
}

// Ingestor runs the bulk corpus pass: one profile plus one voice pattern per
// surviving document. The two outputs come from the same pass but neither is
// derived from the other.
type Ingestor struct {
	store    voice.Store
	embedder voice.Embedder
	config   IngestConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewIngestor creates an ingestor. A zero config gets defaults.
func NewIngestor(store voice.Store, embedder voice.Embedder, config IngestConfig) *Ingestor {
	if config.DocumentDelay <= 0 && config.ErrorDelay <= 0 {
		config = DefaultIngestConfig()
	}
	return &Ingestor{
		store:    store,
		embedder: embedder,
		config:   config,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Ingest builds the profile, then embeds and stores each document as a voice
// pattern. A quota failure aborts the remaining batch immediately rather
// than continuing to burn quota; other embedding failures skip the document
// after the error delay. Store failures are fatal to the batch.
//
// Record ids are deterministic (source + position), so re-running the same
// export upserts instead of duplicating.
func (in *Ingestor) Ingest(ctx context.Context, docs []Document) (*Result, error) {
	result := &Result{Profile: Build(docs)}
	log.Printf("[INGEST] starting corpus run: %d documents, %d above noise floor",
		len(docs), result.Profile.Documents)

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		text := NormalizeDocument(doc.Text)
		if len(text) < MinDocumentChars {
			result.Skipped++
			continue
		}

		embedding, err := in.embedder.Embed(ctx, text)
		if errors.Is(err, voice.ErrQuotaExceeded) {
			result.Aborted = true
			log.Printf("[INGEST] quota exhausted at document %d, aborting batch (processed=%d skipped=%d)",
				i+1, result.Processed, result.Skipped)
			return result, fmt.Errorf("partial ingestion after %d documents: %w", result.Processed, err)
		}
		if err != nil {
			log.Printf("[INGEST] embed document %d failed, skipping: %v", i+1, err)
			result.Skipped++
			if serr := in.sleep(ctx, in.config.ErrorDelay); serr != nil {
				return result, serr
			}
			continue
		}

		pattern := voice.VoicePattern{
			Text:      text,
			Source:    voice.PatternSource(doc.Source),
			Context:   doc.Source + " post",
			Frequency: 1,
		}
		rec := pattern.Record(embedding)
		rec.ID = fmt.Sprintf("%s-%d", doc.Source, i)
		if !doc.Date.IsZero() {
			rec.CreatedAt = doc.Date
		}
		if err := in.store.Upsert(ctx, voice.Voice, rec); err != nil {
			return result, fmt.Errorf("store document %d: %w", i+1, err)
		}
		result.Processed++

		if serr := in.sleep(ctx, in.config.DocumentDelay); serr != nil {
			return result, serr
		}
	}

	log.Printf("[INGEST] corpus run complete: processed=%d skipped=%d", result.Processed, result.Skipped)
	return result, nil
}
