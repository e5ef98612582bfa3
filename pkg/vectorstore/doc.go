// Package vectorstore implements the long-term memory store: append-only
// records with embeddings, k-nearest-neighbour queries and durable persistence.
//
// Two engines are provided. SQLiteStore keeps records and the sqlite-vec index
// in one database and commits both in a single transaction. ChromemStore keeps
// a chromem-go index file next to a JSON metadata file and detects a count
// mismatch between them on Load.
//
// The dimension of a store is fixed by the first ingested vector.
package vectorstore
