package voice

import (
	"context"
	"log"
	"strings"
	"sync"
)

// ProfileFormatter renders a style profile summary for prompt injection.
// profile.VoiceProfile satisfies it.
type ProfileFormatter interface {
	Format() string
}

// AssemblerConfig bounds the assembled context.
type AssemblerConfig struct {
	// Per-section result counts.
	ConversationTopK int // past exchanges with the contact
	ContextTopK      int // knowledge-base material for the contact
	ToneMatchTopK    int // linkedin patterns ranked against the message body
	PatternTopK      int // generic voice patterns

	// SnippetLength truncates each quoted snippet to bound prompt size.
	SnippetLength int

	// StyleGuidelines is the static final section.
	StyleGuidelines string

	// Profile, when set, is rendered between the retrieved sections and the
	// static guidelines.
	Profile ProfileFormatter
}

// DefaultStyleGuidelines is the fallback static section.
const DefaultStyleGuidelines = `Write the reply in the owner's voice: match her typical greeting, sentence length, and sign-off. Keep it concise and concrete. Never invent commitments she did not make.`

// DefaultAssemblerConfig returns the standard section sizes.
func DefaultAssemblerConfig() *AssemblerConfig {
	return &AssemblerConfig{
		ConversationTopK: 3,
		ContextTopK:      2,
		ToneMatchTopK:    5,
		PatternTopK:      8,
		SnippetLength:    200,
		StyleGuidelines:  DefaultStyleGuidelines,
	}
}

// Assembler builds the bounded prompt context for a drafting step. It is
// strictly best-effort: a failed namespace query degrades that section to
// empty, and Assemble never returns an error.
type Assembler struct {
	store    Store
	embedder Embedder
	config   *AssemblerConfig
}

// NewAssembler creates an assembler. A nil config gets defaults.
func NewAssembler(store Store, embedder Embedder, config *AssemblerConfig) *Assembler {
	if config == nil {
		config = DefaultAssemblerConfig()
	}
	return &Assembler{store: store, embedder: embedder, config: config}
}

// Assemble queries the namespaces concurrently, waits for all of them to
// settle, and merges the hits into fixed-order sections. The same record is
// never quoted twice: the earlier section claims the id.
func (a *Assembler) Assemble(ctx context.Context, contactID, messageText string) string {
	var queryVec []float32
	if strings.TrimSpace(messageText) != "" {
		vec, err := a.embedder.Embed(ctx, messageText)
		if err != nil {
			log.Printf("[ASSEMBLE] embed query failed, retrieval skipped: %v", err)
		} else {
			queryVec = vec
		}
	}

	var conversations, related, toneMatched, patterns []QueryResult
	if queryVec != nil {
		var wg sync.WaitGroup
		run := func(dst *[]QueryResult, ns Namespace, topK int, filter Filter, label string) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hits, err := a.store.Query(ctx, ns, queryVec, topK, filter)
				if err != nil {
					log.Printf("[ASSEMBLE] %s query degraded to empty: %v", label, err)
					return
				}
				*dst = hits
			}()
		}

		contact := Filter{"contact_id": contactID}
		run(&conversations, Conversations, a.config.ConversationTopK, contact, "conversation")
		run(&related, KnowledgeBase, a.config.ContextTopK, contact, "knowledge-base")
		run(&toneMatched, Voice, a.config.ToneMatchTopK, Filter{"source": string(SourceLinkedIn)}, "tone-match")
		run(&patterns, Voice, a.config.PatternTopK, nil, "pattern")
		wg.Wait()
	}

	var b strings.Builder
	seen := make(map[string]bool)
	a.section(&b, "Past conversations", conversations, seen)
	a.section(&b, "Relevant context", related, seen)
	a.section(&b, "Voice profile: tone-matched examples", toneMatched, seen)
	a.section(&b, "Voice profile: common patterns", patterns, seen)

	if a.config.Profile != nil {
		if summary := strings.TrimSpace(a.config.Profile.Format()); summary != "" {
			b.WriteString("## Voice profile summary\n")
			b.WriteString(summary)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Style guidelines\n")
	b.WriteString(a.config.StyleGuidelines)
	b.WriteString("\n")
	return b.String()
}

func (a *Assembler) section(b *strings.Builder, title string, hits []QueryResult, seen map[string]bool) {
	wrote := false
	for _, h := range hits {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		if !wrote {
			b.WriteString("## " + title + "\n")
			wrote = true
		}
		b.WriteString("- " + Truncate(text, a.config.SnippetLength) + "\n")
	}
	if wrote {
		b.WriteString("\n")
	}
}
