package voice

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short string should pass through, got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
	// Rune-safe: multi-byte characters are not split.
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("expected %q, got %q", "hé", got)
	}
	if got := Truncate("x", 0); got != "" {
		t.Errorf("zero max should yield empty, got %q", got)
	}
}

func TestVoicePattern_ContentAddressing(t *testing.T) {
	a := VoicePattern{Text: "Happy to take a look"}
	b := VoicePattern{Text: "  happy   to take a LOOK "}
	if a.RecordID() != b.RecordID() {
		t.Errorf("normalized variants should share an id: %s vs %s", a.RecordID(), b.RecordID())
	}
	c := VoicePattern{Text: "a different phrase entirely"}
	if a.RecordID() == c.RecordID() {
		t.Error("different text should not collide")
	}
	if !strings.HasPrefix(a.RecordID(), "vp-") {
		t.Errorf("unexpected id shape %q", a.RecordID())
	}
}

func TestVoicePattern_Record(t *testing.T) {
	long := strings.Repeat("word ", 400) // well past the stored-text cap
	p := VoicePattern{Text: long, Source: SourceEmailEdit, Context: "draft-1/sent-1"}
	rec := p.Record([]float32{0.1, 0.2})

	if len([]rune(rec.Text)) > MaxStoredText {
		t.Errorf("stored text exceeds cap: %d runes", len([]rune(rec.Text)))
	}
	if rec.Metadata["frequency"] != "1" {
		t.Errorf("zero frequency should default to 1, got %q", rec.Metadata["frequency"])
	}
	if rec.Metadata["source"] != string(SourceEmailEdit) {
		t.Errorf("unexpected source %q", rec.Metadata["source"])
	}
	if rec.Metadata["content_hash"] != p.Hash() {
		t.Error("content hash metadata mismatch")
	}
	if rec.Namespace != Voice {
		t.Errorf("pattern records belong to the voice namespace, got %q", rec.Namespace)
	}
}

func TestNamespaceValid(t *testing.T) {
	for _, ns := range Namespaces {
		if !ns.Valid() {
			t.Errorf("%q should be valid", ns)
		}
	}
	if Namespace("bogus").Valid() {
		t.Error("unknown namespace should be invalid")
	}
}
