package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"

	"github.com/CylentisAI/Inbox-scout/learn"
	"github.com/CylentisAI/Inbox-scout/voice"
)

// Message is an inbound mail item as the mail provider reports it.
type Message struct {
	ID             string
	Subject        string
	Body           string
	Sender         string // email address
	SenderName     string
	ConversationID string
	Timestamp      time.Time
}

// MailClient is the mail-provider boundary.
type MailClient interface {
	FetchUnread(ctx context.Context, limit int) ([]Message, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	CreateReplyDraft(ctx context.Context, messageID, body string) (draftID string, err error)
}

// CRMClient is the CRM/database boundary.
type CRMClient interface {
	FindOrCreateContact(ctx context.Context, email, name string) (contactID string, err error)
	CreateDraftRecord(ctx context.Context, contactID, messageID, draftID, body string) error
	CreateInteractionRecord(ctx context.Context, contactID, messageID, summary string) error
}

// Drafter is the opaque drafting step: returns text or fails.
type Drafter interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// respondCacheSize bounds the should-respond cache (entries).
const respondCacheSize = 1000

// Engine orchestrates the reply pipeline.
type Engine struct {
	store     voice.Store
	embedder  voice.Embedder
	assembler *voice.Assembler

	mail    MailClient
	crm     CRMClient
	drafter Drafter
	outbox  *outbox

	mu        sync.Mutex
	processed map[string]struct{} // per-process, resets on restart

	respond *ristretto.Cache
}

// Option configures the engine.
type Option func(*Engine)

// WithMail sets the mail provider client.
func WithMail(m MailClient) Option {
	return func(e *Engine) { e.mail = m }
}

// WithCRM sets the CRM client.
func WithCRM(c CRMClient) Option {
	return func(e *Engine) { e.crm = c }
}

// WithDrafter sets the drafting step.
func WithDrafter(d Drafter) Option {
	return func(e *Engine) { e.drafter = d }
}

// WithLearner enables edit learning through the outbox worker.
func WithLearner(l *learn.Engine) Option {
	return func(e *Engine) { e.outbox = newOutbox(l, 64) }
}

// WithAssemblerConfig overrides the context assembly bounds.
func WithAssemblerConfig(cfg *voice.AssemblerConfig) Option {
	return func(e *Engine) { e.assembler = voice.NewAssembler(e.store, e.embedder, cfg) }
}

// New creates an engine over the voice memory store and embedder. Mail, CRM,
// drafter, and learner are optional; operations that need a missing
// collaborator return an error.
func New(store voice.Store, embedder voice.Embedder, opts ...Option) (*Engine, error) {
	respond, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: respondCacheSize * 10,
		MaxCost:     respondCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create respond cache: %w", err)
	}

	e := &Engine{
		store:     store,
		embedder:  embedder,
		assembler: voice.NewAssembler(store, embedder, nil),
		processed: make(map[string]struct{}),
		respond:   respond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close drains the learning outbox and releases the cache.
func (e *Engine) Close() {
	if e.outbox != nil {
		e.outbox.Close()
	}
	e.respond.Close()
}

// AssembleContext returns the bounded prompt context for a contact and
// message. Always best-effort; never fails.
func (e *Engine) AssembleContext(ctx context.Context, contactID, messageText string) string {
	return e.assembler.Assemble(ctx, contactID, messageText)
}

// StoreRecord embeds text and writes it into a namespace. The embedding is
// computed from the truncated copy that gets stored, keeping vector and text
// in sync.
func (e *Engine) StoreRecord(ctx context.Context, ns voice.Namespace, text string, metadata map[string]string) error {
	stored := voice.Truncate(text, voice.MaxStoredText)
	embedding, err := e.embedder.Embed(ctx, stored)
	if err != nil {
		return fmt.Errorf("embed record: %w", err)
	}
	rec := voice.Record{
		ID:        uuid.New().String(),
		Namespace: ns,
		Text:      stored,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	return e.store.Upsert(ctx, ns, rec)
}

// LearnFromEdit queues a draft-vs-sent comparison for the outbox worker.
// Fire-and-forget: failures are retried by the worker and logged, never
// surfaced to the mail flow.
func (e *Engine) LearnFromEdit(original, edited, provenance string) {
	if e.outbox == nil {
		log.Printf("[ENGINE] no learner configured, dropping edit from %s", provenance)
		return
	}
	if !e.outbox.Enqueue(learnJob{original: original, edited: edited, provenance: provenance}) {
		log.Printf("[ENGINE] learning outbox full, dropping edit from %s", provenance)
	}
}

// ProcessUnread drafts replies for unread messages and returns how many
// drafts it created. A message is marked processed only once its draft
// exists, so a failed generation is retried on the next run.
func (e *Engine) ProcessUnread(ctx context.Context, limit int) (int, error) {
	if e.mail == nil || e.drafter == nil {
		return 0, fmt.Errorf("mail client and drafter are required")
	}

	messages, err := e.mail.FetchUnread(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch unread: %w", err)
	}

	drafted := 0
	for _, msg := range messages {
		if e.alreadyProcessed(msg.ID) {
			continue
		}
		if !e.shouldRespond(msg) {
			log.Printf("[ENGINE] skipping %s from %s (no reply warranted)", msg.ID, msg.Sender)
			e.markProcessed(msg.ID)
			continue
		}

		if err := e.draftReply(ctx, msg); err != nil {
			log.Printf("[ENGINE] drafting reply to %s failed: %v", msg.ID, err)
			continue
		}
		e.markProcessed(msg.ID)
		drafted++
	}
	return drafted, nil
}

func (e *Engine) draftReply(ctx context.Context, msg Message) error {
	contactID := msg.Sender
	if e.crm != nil {
		id, err := e.crm.FindOrCreateContact(ctx, msg.Sender, msg.SenderName)
		if err != nil {
			log.Printf("[ENGINE] CRM contact lookup for %s failed, using address: %v", msg.Sender, err)
		} else {
			contactID = id
		}
	}

	prompt := e.buildPrompt(ctx, contactID, msg)
	reply, err := e.drafter.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	draftID, err := e.mail.CreateReplyDraft(ctx, msg.ID, reply)
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	log.Printf("[ENGINE] draft %s created for message %s", draftID, msg.ID)

	// Everything past the draft is bookkeeping: log and move on.
	if e.crm != nil {
		if err := e.crm.CreateDraftRecord(ctx, contactID, msg.ID, draftID, reply); err != nil {
			log.Printf("[ENGINE] CRM draft record for %s failed: %v", msg.ID, err)
		}
		if err := e.crm.CreateInteractionRecord(ctx, contactID, msg.ID, "reply drafted: "+msg.Subject); err != nil {
			log.Printf("[ENGINE] CRM interaction record for %s failed: %v", msg.ID, err)
		}
	}
	if err := e.StoreRecord(ctx, voice.Conversations, msg.Body, map[string]string{
		"contact_id": contactID,
		"message_id": msg.ID,
		"subject":    msg.Subject,
		"sender":     msg.Sender,
	}); err != nil {
		log.Printf("[ENGINE] storing conversation record for %s failed: %v", msg.ID, err)
	}
	return nil
}

func (e *Engine) buildPrompt(ctx context.Context, contactID string, msg Message) string {
	var b strings.Builder
	b.WriteString(e.assembler.Assemble(ctx, contactID, msg.Body))
	b.WriteString("\n## Incoming message\n")
	fmt.Fprintf(&b, "From: %s\nSubject: %s\n\n%s\n", msg.Sender, msg.Subject, msg.Body)
	b.WriteString("\nWrite the reply now. Output only the reply body.\n")
	return b.String()
}

func (e *Engine) alreadyProcessed(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.processed[id]
	return ok
}

func (e *Engine) markProcessed(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processed[id] = struct{}{}
}

// shouldRespond applies the cheap sender/subject heuristics, memoized on a
// coarse key so repeated notifications from the same source skip the checks.
func (e *Engine) shouldRespond(msg Message) bool {
	key := msg.Sender + "|" + voice.Truncate(msg.Subject, 32)
	if cached, ok := e.respond.Get(key); ok {
		return cached.(bool)
	}
	decision := wantsReply(msg)
	e.respond.Set(key, decision, 1)
	return decision
}

var noReplySenders = []string{"no-reply", "noreply", "donotreply", "mailer-daemon", "notifications@"}

var autoSubjects = []string{"unsubscribe", "out of office", "automatic reply", "auto-reply", "delivery status"}

func wantsReply(msg Message) bool {
	sender := strings.ToLower(msg.Sender)
	for _, marker := range noReplySenders {
		if strings.Contains(sender, marker) {
			return false
		}
	}
	subject := strings.ToLower(msg.Subject)
	for _, marker := range autoSubjects {
		if strings.Contains(subject, marker) {
			return false
		}
	}
	return strings.TrimSpace(msg.Body) != ""
}
