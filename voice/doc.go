// Package voice implements the adaptive voice memory engine: a namespaced
// vector store of a mailbox owner's writing, retrieved at draft time to bias
// generated replies toward her voice.
//
// Records are partitioned into namespaces so similarity queries don't
// cross-contaminate (conversation history vs. learned voice patterns vs.
// knowledge base). Every record's embedding is computed from the text it
// stores, so search correctness never drifts from the stored copy.
//
// Architecture:
//   - Store: namespaced vector storage backend (chromem-go for the embedded
//     implementation, swappable for a hosted vector DB)
//   - Embedder: text-to-vector conversion (HTTP provider, local ONNX model,
//     or deterministic mock for tests)
//   - RetryEmbedder: wraps any Embedder with the quota/transient retry policy
//   - Assembler: merges multi-namespace retrieval into one bounded prompt
//     context
//
// The learning side of the loop (diffing sent mail against proposed drafts,
// mining a bulk corpus into a style profile) lives in the learn and profile
// packages.
package voice
