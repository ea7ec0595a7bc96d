package learn

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/CylentisAI/Inbox-scout/voice"
)

// Compare diffs the proposed draft against the sent text and classifies the
// spans plus three style heuristics (length, greeting, closing preference).
func Compare(original, edited string) Delta {
	var d Delta
	for _, diff := range Diff(original, edited) {
		text := strings.TrimSpace(diff.Text)
		if text == "" {
			continue
		}
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			d.AddedPhrases = append(d.AddedPhrases, text)
		case diffmatchpatch.DiffDelete:
			d.RemovedPhrases = append(d.RemovedPhrases, text)
		}
	}

	if note := lengthPreference(original, edited); note != "" {
		d.StyleChanges = append(d.StyleChanges, note)
	}
	if note := greetingPreference(original, edited); note != "" {
		d.StyleChanges = append(d.StyleChanges, note)
	}
	if note := closingPreference(original, edited); note != "" {
		d.StyleChanges = append(d.StyleChanges, note)
	}
	return d
}

// lengthPreference flags edits that land outside ±20% of the draft's word
// count.
func lengthPreference(original, edited string) string {
	origWords := len(strings.Fields(original))
	editWords := len(strings.Fields(edited))
	if origWords == 0 {
		return ""
	}
	ratio := float64(editWords) / float64(origWords)
	switch {
	case ratio < 0.8:
		return "prefers shorter responses"
	case ratio > 1.2:
		return "prefers more detailed responses"
	}
	return ""
}

var greetingRe = regexp.MustCompile(`(?i)^(hi|hey|hello|dear|good morning|good afternoon|good evening)\b(\s+\w+)?[,.!]?`)

// greetingPreference compares the greeting extracted from each first line.
func greetingPreference(original, edited string) string {
	origGreeting := extractGreeting(original)
	editGreeting := extractGreeting(edited)
	if origGreeting == "" || editGreeting == "" {
		return ""
	}
	if strings.EqualFold(origGreeting, editGreeting) {
		return ""
	}
	return fmt.Sprintf("prefers greeting %q over %q", editGreeting, origGreeting)
}

func extractGreeting(text string) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(greetingRe.FindString(strings.TrimSpace(line)))
}

var closingKeywordRe = regexp.MustCompile(`(?i)\b(thanks|thank you|regards|best|cheers|sincerely|warmly|talk soon)\b`)

// closingPreference compares the closing phrase found in each text's last
// three lines.
func closingPreference(original, edited string) string {
	origClosing := extractClosing(original)
	editClosing := extractClosing(edited)
	if origClosing == "" || editClosing == "" {
		return ""
	}
	if strings.EqualFold(origClosing, editClosing) {
		return ""
	}
	return fmt.Sprintf("prefers closing %q over %q", editClosing, origClosing)
}

// extractClosing returns the tail of the last three lines starting at the
// final closing keyword, so body sentences that happen to contain one
// ("thanks for reaching out...") don't shadow the real sign-off.
func extractClosing(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	blob := strings.Join(lines, "\n")

	locs := closingKeywordRe.FindAllStringIndex(blob, -1)
	if len(locs) == 0 {
		return ""
	}
	return strings.TrimSpace(blob[locs[len(locs)-1][0]:])
}

// Engine turns edit deltas into persisted voice patterns.
type Engine struct {
	store    voice.Store
	embedder voice.Embedder
}

// NewEngine creates a learning engine.
func NewEngine(store voice.Store, embedder voice.Embedder) *Engine {
	return &Engine{store: store, embedder: embedder}
}

// LearnFromEdit compares the texts and, when the owner inserted anything,
// persists one voice pattern for the whole learning event. Patterns are
// content-addressed: a recurring edit bumps the frequency counter on the
// existing record instead of appending a duplicate. The returned Delta is
// for logging regardless of persistence outcome.
func (e *Engine) LearnFromEdit(ctx context.Context, original, edited, provenance string) (Delta, error) {
	delta := Compare(original, edited)
	if len(delta.AddedPhrases) == 0 {
		log.Printf("[LEARN] nothing added in edit (%s), no pattern stored", provenance)
		return delta, nil
	}

	pattern := voice.VoicePattern{
		Text:      strings.Join(delta.AddedPhrases, "\n"),
		Source:    voice.SourceEmailEdit,
		Context:   provenance,
		Frequency: 1,
	}

	// Embed the full pattern text; only the stored copy is truncated.
	embedding, err := e.embedder.Embed(ctx, pattern.Text)
	if err != nil {
		return delta, fmt.Errorf("embed pattern: %w", err)
	}

	pattern.Frequency = e.nextFrequency(ctx, pattern, embedding)
	if err := e.store.Upsert(ctx, voice.Voice, pattern.Record(embedding)); err != nil {
		return delta, fmt.Errorf("store pattern: %w", err)
	}

	log.Printf("[LEARN] stored pattern %s (frequency=%d) from %s",
		pattern.RecordID(), pattern.Frequency, provenance)
	return delta, nil
}

// nextFrequency looks up a previously stored copy of the same normalized
// pattern and returns its counter plus one. Lookup failures count as a first
// sighting.
func (e *Engine) nextFrequency(ctx context.Context, pattern voice.VoicePattern, embedding []float32) int {
	hits, err := e.store.Query(ctx, voice.Voice, embedding, 1, voice.Filter{"content_hash": pattern.Hash()})
	if err != nil || len(hits) == 0 {
		return 1
	}
	prev, err := strconv.Atoi(hits[0].Metadata["frequency"])
	if err != nil || prev < 1 {
		return 1
	}
	return prev + 1
}
