package voice_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/CylentisAI/Inbox-scout/voice"
	"github.com/CylentisAI/Inbox-scout/voice/embedder/mock"
	"github.com/CylentisAI/Inbox-scout/voice/store/chromem"
)

func seedRecord(t *testing.T, store voice.Store, embedder voice.Embedder, ns voice.Namespace, id, text string, metadata map[string]string) {
	t.Helper()
	ctx := context.Background()
	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		t.Fatalf("embed seed %s: %v", id, err)
	}
	err = store.Upsert(ctx, ns, voice.Record{
		ID:        id,
		Namespace: ns,
		Text:      text,
		Embedding: vec,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestAssembler_SectionsAndOrder(t *testing.T) {
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	embedder := mock.New(64)

	seedRecord(t, store, embedder, voice.Conversations, "conv-1",
		"Sounds good, see you Thursday at the studio.",
		map[string]string{"contact_id": "contact-1"})
	seedRecord(t, store, embedder, voice.KnowledgeBase, "kb-1",
		"Contact prefers afternoon calls and short agendas.",
		map[string]string{"contact_id": "contact-1"})
	seedRecord(t, store, embedder, voice.Voice, "vp-linkedin-1",
		"Because shipping beats polishing, we launched early.",
		map[string]string{"source": "linkedin"})
	seedRecord(t, store, embedder, voice.Voice, "vp-edit-1",
		"Happy to take a look and follow up by Friday",
		map[string]string{"source": "email-edit"})

	a := voice.NewAssembler(store, embedder, nil)
	out := a.Assemble(context.Background(), "contact-1", "Can we meet this week?")

	sections := []string{
		"## Past conversations",
		"## Relevant context",
		"## Voice profile: tone-matched examples",
		"## Voice profile: common patterns",
		"## Style guidelines",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(out, s)
		if idx < 0 {
			t.Fatalf("missing section %q in output:\n%s", s, out)
		}
		if idx < last {
			t.Errorf("section %q out of order", s)
		}
		last = idx
	}

	if !strings.Contains(out, "see you Thursday") {
		t.Error("expected conversation snippet in output")
	}
	// The linkedin pattern matches both voice queries; it must be quoted once.
	if n := strings.Count(out, "Because shipping beats polishing"); n != 1 {
		t.Errorf("expected deduplicated pattern to appear once, got %d", n)
	}
}

func TestAssembler_SnippetTruncation(t *testing.T) {
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	embedder := mock.New(64)

	long := strings.Repeat("a very long conversation snippet ", 30)
	seedRecord(t, store, embedder, voice.Conversations, "conv-long", long,
		map[string]string{"contact_id": "contact-1"})

	a := voice.NewAssembler(store, embedder, nil)
	out := a.Assemble(context.Background(), "contact-1", "hello there")

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "- ") && len([]rune(line)) > 2+200 {
			t.Errorf("snippet exceeds bound: %d runes", len([]rune(line)))
		}
	}
}

// unavailableStore fails every call, standing in for a vector store outage.
type unavailableStore struct{}

func (unavailableStore) Upsert(context.Context, voice.Namespace, voice.Record) error {
	return fmt.Errorf("%w: down for maintenance", voice.ErrStoreUnavailable)
}

func (unavailableStore) Query(context.Context, voice.Namespace, []float32, int, voice.Filter) ([]voice.QueryResult, error) {
	return nil, fmt.Errorf("%w: down for maintenance", voice.ErrStoreUnavailable)
}

func (unavailableStore) Delete(context.Context, voice.Namespace, ...string) error {
	return fmt.Errorf("%w: down for maintenance", voice.ErrStoreUnavailable)
}

func (unavailableStore) Close() error { return nil }

func TestAssembler_DegradesToGuidelinesOnFailure(t *testing.T) {
	a := voice.NewAssembler(unavailableStore{}, mock.New(64), nil)
	out := a.Assemble(context.Background(), "contact-1", "hello there")

	if !strings.Contains(out, "## Style guidelines") {
		t.Fatalf("expected style guidelines even when retrieval fails:\n%s", out)
	}
	if strings.Contains(out, "## Past conversations") {
		t.Error("failed sections should be omitted, not rendered empty")
	}
}

type staticProfile string

func (s staticProfile) Format() string { return string(s) }

func TestAssembler_RendersProfileSummary(t *testing.T) {
	cfg := voice.DefaultAssemblerConfig()
	cfg.Profile = staticProfile("Tone: warmth 0.80, directness 0.40, formality 0.20.")

	a := voice.NewAssembler(unavailableStore{}, mock.New(64), cfg)
	out := a.Assemble(context.Background(), "contact-1", "hello there")

	profileIdx := strings.Index(out, "## Voice profile summary")
	guideIdx := strings.Index(out, "## Style guidelines")
	if profileIdx < 0 {
		t.Fatalf("missing profile summary:\n%s", out)
	}
	if guideIdx < profileIdx {
		t.Error("profile summary should precede style guidelines")
	}
	if !strings.Contains(out, "warmth 0.80") {
		t.Error("profile content not rendered")
	}
}
