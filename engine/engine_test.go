package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/CylentisAI/Inbox-scout/learn"
	"github.com/CylentisAI/Inbox-scout/voice"
	"github.com/CylentisAI/Inbox-scout/voice/embedder/mock"
	"github.com/CylentisAI/Inbox-scout/voice/store/chromem"
)

type fakeMail struct {
	unread []Message
	drafts map[string]string // messageID -> draft body
}

func newFakeMail(msgs ...Message) *fakeMail {
	return &fakeMail{unread: msgs, drafts: make(map[string]string)}
}

func (m *fakeMail) FetchUnread(ctx context.Context, limit int) ([]Message, error) {
	if limit > 0 && len(m.unread) > limit {
		return m.unread[:limit], nil
	}
	return m.unread, nil
}

func (m *fakeMail) GetMessage(ctx context.Context, id string) (*Message, error) {
	for i := range m.unread {
		if m.unread[i].ID == id {
			return &m.unread[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (m *fakeMail) CreateReplyDraft(ctx context.Context, messageID, body string) (string, error) {
	m.drafts[messageID] = body
	return "draft-" + messageID, nil
}

type fakeCRM struct {
	contacts     map[string]string
	draftRecords int
	interactions int
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{contacts: map[string]string{"amy@example.com": "contact-amy"}}
}

func (c *fakeCRM) FindOrCreateContact(ctx context.Context, email, name string) (string, error) {
	if id, ok := c.contacts[email]; ok {
		return id, nil
	}
	id := "contact-" + email
	c.contacts[email] = id
	return id, nil
}

func (c *fakeCRM) CreateDraftRecord(ctx context.Context, contactID, messageID, draftID, body string) error {
	c.draftRecords++
	return nil
}

func (c *fakeCRM) CreateInteractionRecord(ctx context.Context, contactID, messageID, summary string) error {
	c.interactions++
	return nil
}

type fakeDrafter struct {
	reply    string
	failures int // fail this many calls before succeeding
	prompts  []string
}

func (d *fakeDrafter) Generate(ctx context.Context, prompt string) (string, error) {
	d.prompts = append(d.prompts, prompt)
	if d.failures > 0 {
		d.failures--
		return "", errors.New("model unavailable")
	}
	return d.reply, nil
}

func newEngineStore(t *testing.T) voice.Store {
	t.Helper()
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func TestProcessUnread_DraftsRepliesAndSkipsAutomation(t *testing.T) {
	ctx := context.Background()
	store := newEngineStore(t)
	embedder := mock.New(64)

	mail := newFakeMail(
		Message{ID: "m1", Subject: "Q3 roadmap", Body: "Can we sync on the roadmap this week?", Sender: "amy@example.com", SenderName: "Amy", Timestamp: time.Now()},
		Message{ID: "m2", Subject: "Your weekly digest", Body: "Here is your digest.", Sender: "noreply@updates.io", Timestamp: time.Now()},
	)
	crm := newFakeCRM()
	drafter := &fakeDrafter{reply: "Happy to sync. Does Thursday work?"}

	e, err := New(store, embedder, WithMail(mail), WithCRM(crm), WithDrafter(drafter))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	drafted, err := e.ProcessUnread(ctx, 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if drafted != 1 {
		t.Fatalf("drafted = %d, want 1", drafted)
	}
	if mail.drafts["m1"] != drafter.reply {
		t.Errorf("draft body = %q", mail.drafts["m1"])
	}
	if _, ok := mail.drafts["m2"]; ok {
		t.Error("no-reply sender should not get a draft")
	}
	if crm.draftRecords != 1 || crm.interactions != 1 {
		t.Errorf("CRM bookkeeping: drafts=%d interactions=%d, want 1/1", crm.draftRecords, crm.interactions)
	}

	prompt := drafter.prompts[0]
	for _, want := range []string{"## Incoming message", "amy@example.com", "Q3 roadmap", "## Style guidelines"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// The inbound message lands in conversation memory keyed to the contact.
	vec, _ := embedder.Embed(ctx, "roadmap")
	hits, err := store.Query(ctx, voice.Conversations, vec, 5, voice.Filter{"contact_id": "contact-amy"})
	if err != nil {
		t.Fatalf("query conversations: %v", err)
	}
	if len(hits) != 1 || hits[0].Metadata["message_id"] != "m1" {
		t.Errorf("expected one stored conversation for m1, got %+v", hits)
	}

	// A second pass over the same inbox is a no-op.
	drafted, err = e.ProcessUnread(ctx, 10)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if drafted != 0 {
		t.Errorf("second run drafted %d, want 0", drafted)
	}
}

func TestProcessUnread_RetriesFailedDraftNextRun(t *testing.T) {
	ctx := context.Background()
	mail := newFakeMail(Message{ID: "m1", Subject: "Intro", Body: "Would love to connect.", Sender: "lee@example.com"})
	drafter := &fakeDrafter{reply: "Likewise, thanks for reaching out.", failures: 1}

	e, err := New(newEngineStore(t), mock.New(64), WithMail(mail), WithDrafter(drafter))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	drafted, err := e.ProcessUnread(ctx, 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if drafted != 0 {
		t.Fatalf("failed generation should draft nothing, got %d", drafted)
	}

	// The message was not marked processed, so the next run picks it up.
	drafted, err = e.ProcessUnread(ctx, 10)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if drafted != 1 || mail.drafts["m1"] == "" {
		t.Errorf("retry run drafted %d (draft %q), want 1", drafted, mail.drafts["m1"])
	}
}

func TestProcessUnread_RequiresMailAndDrafter(t *testing.T) {
	e, err := New(newEngineStore(t), mock.New(64))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	if _, err := e.ProcessUnread(context.Background(), 10); err == nil {
		t.Error("expected an error without mail client and drafter")
	}
}

func TestLearnFromEdit_OutboxDrainsOnClose(t *testing.T) {
	ctx := context.Background()
	store := newEngineStore(t)
	embedder := mock.New(64)

	e, err := New(store, embedder, WithLearner(learn.NewEngine(store, embedder)))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	original := "Hi John, I will review and get back to you. Best, Amy"
	edited := "Hi John, Happy to take a look and follow up by Friday. Best, Amy"
	e.LearnFromEdit(original, edited, "draft-1/sent-1")
	e.Close() // waits for the worker to finish the queued job

	vec, _ := embedder.Embed(ctx, "probe")
	hits, err := store.Query(ctx, voice.Voice, vec, 5, voice.Filter{"source": string(voice.SourceEmailEdit)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected one learned pattern, got %d", len(hits))
	}
	if !strings.Contains(hits[0].Text, "Happy to take a look") {
		t.Errorf("pattern text = %q", hits[0].Text)
	}
}

func TestWantsReply(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want bool
	}{
		{"real message", Message{Sender: "amy@example.com", Subject: "Hello", Body: "Quick question."}, true},
		{"noreply sender", Message{Sender: "no-reply@corp.com", Subject: "Hello", Body: "x"}, false},
		{"notifications sender", Message{Sender: "notifications@github.com", Subject: "PR merged", Body: "x"}, false},
		{"out of office", Message{Sender: "amy@example.com", Subject: "Automatic reply: Out of office", Body: "x"}, false},
		{"unsubscribe subject", Message{Sender: "amy@example.com", Subject: "How to unsubscribe", Body: "x"}, false},
		{"empty body", Message{Sender: "amy@example.com", Subject: "Hello", Body: "   "}, false},
	}
	for _, tc := range cases {
		if got := wantsReply(tc.msg); got != tc.want {
			t.Errorf("%s: wantsReply = %v, want %v", tc.name, got, tc.want)
		}
	}
}
