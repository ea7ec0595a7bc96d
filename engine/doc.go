// Package engine runs the reply pipeline: fetch unread mail, assemble voice
// context, draft a reply, file it with the mail provider and CRM, and learn
// from the owner's eventual edits.
//
// The mail provider, CRM, and drafting model are collaborators behind
// interfaces; the engine owns only the orchestration, the per-process
// dedup/should-respond state, and the learning outbox. Learning and
// bookkeeping failures never block the primary mail flow.
package engine
