package voice

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// Namespace is a logical partition of the vector store. Queries never cross
// namespaces, so unrelated content families can't contaminate each other's
// rankings.
type Namespace string

const (
	// Conversations holds past email exchanges, keyed by contact.
	Conversations Namespace = "conversations"

	// Voice holds learned and mined writing-style patterns.
	Voice Namespace = "voice"

	// KnowledgeBase holds reference material (FAQ answers, product notes).
	KnowledgeBase Namespace = "knowledge-base"

	// Notes holds per-contact CRM notes.
	Notes Namespace = "notes"

	// Emails holds raw inbound email bodies.
	Emails Namespace = "emails"
)

// Namespaces lists every valid namespace.
var Namespaces = []Namespace{Conversations, Voice, KnowledgeBase, Notes, Emails}

// Valid reports whether n is a known namespace.
func (n Namespace) Valid() bool {
	for _, ns := range Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// MaxStoredText caps the text stored with a record. Longer content is
// truncated before storage to bound metadata size; the embedding is computed
// from the same truncated copy so stored text and vector stay in sync.
const MaxStoredText = 1000

// Record is an immutable unit of content indexed for retrieval. Corrections
// are modeled as new records rather than in-place edits; the only exception
// is the frequency counter on deduplicated voice patterns, which is bumped
// via idempotent upsert.
type Record struct {
	ID        string
	Namespace Namespace
	Text      string
	Embedding []float32
	Metadata  map[string]string
	CreatedAt time.Time
}

// QueryResult is one ranked hit from a similarity query.
type QueryResult struct {
	ID       string
	Score    float32
	Text     string
	Metadata map[string]string
}

// Filter is an equality predicate over metadata fields, applied before
// ranking. A record missing a filtered field is excluded.
type Filter map[string]string

// PatternSource identifies where a voice pattern was learned from.
type PatternSource string

const (
	SourceLinkedIn  PatternSource = "linkedin"
	SourceEmailEdit PatternSource = "email-edit"
	SourceManual    PatternSource = "manual"
)

// VoicePattern is a stored example of the owner's writing style. Patterns
// are content-addressed: two learning events that produce the same
// normalized text map to the same record id, and recurrence bumps Frequency
// instead of appending a duplicate row.
type VoicePattern struct {
	Text      string
	Source    PatternSource
	Context   string // provenance label, e.g. "LinkedIn post" or a draft/sent id pair
	Frequency int
}

// Hash returns the content hash of the pattern's normalized text.
func (p VoicePattern) Hash() string {
	h := fnv.New64a()
	h.Write([]byte(NormalizeText(p.Text)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// RecordID returns the deterministic, content-addressed record id.
func (p VoicePattern) RecordID() string {
	return "vp-" + p.Hash()
}

// Record builds the storable record for this pattern. The embedding must be
// computed from the full pattern text; truncation applies only to the stored
// copy.
func (p VoicePattern) Record(embedding []float32) Record {
	if p.Frequency < 1 {
		p.Frequency = 1
	}
	return Record{
		ID:        p.RecordID(),
		Namespace: Voice,
		Text:      Truncate(p.Text, MaxStoredText),
		Embedding: embedding,
		Metadata: map[string]string{
			"source":       string(p.Source),
			"context":      p.Context,
			"frequency":    strconv.Itoa(p.Frequency),
			"content_hash": p.Hash(),
			"active":       "true",
		},
		CreatedAt: time.Now(),
	}
}

// NormalizeText lowercases and collapses whitespace, for content addressing.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
