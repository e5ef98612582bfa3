// Package memory combines a bounded short-term transcript buffer with a
// long-term vector store and renders both into one prompt context.
//
// Invariants:
// - The short-term buffer holds the last Capacity messages, oldest first.
// - AddMessage always updates the buffer, even if long-term ingest fails.
// - Long-term hits are rendered nearest first.
//
// Usage:
//
//	store, _ := vectorstore.OpenSQLiteStore(ctx, vectorstore.SQLiteConfig{Path: "memory.db", EmbeddingProvider: emb})
//	mgr, _ := memory.NewManager(memory.Config{Store: store, Capacity: 10})
//	_ = mgr.AddMessage(ctx, "user", "hello")
//	prompt, _ := mgr.ConstructPrompt(ctx, "what did I say?", 3)
package memory
