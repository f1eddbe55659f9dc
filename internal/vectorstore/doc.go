// Package vectorstore ingests text chunks into a Qdrant collection and reads
// them back by hybrid similarity search or by a full scan.
//
// A Store is built with Connect, which never fails: when the backend or the
// dense embedder cannot be set up the Store is disconnected, every operation
// logs and returns an empty result, and Diagnostic reports why. Backend
// errors during an operation are handled the same way. Only caller mistakes
// (mismatched input lengths, empty texts) are returned as errors.
//
// Ranking is done by the backend. With a sparse model configured, Query sends
// a dense and a sparse prefetch and asks for reciprocal rank fusion; without
// one it runs a plain dense query. Results keep the backend's order.
//
// ScrollAll walks a collection page by page, threading the backend's
// continuation cursor unchanged between requests.
package vectorstore
