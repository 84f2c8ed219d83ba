// Package memstore provides an in-memory storage engine implementing every
// catalog store contract, for unit tests that need real transactional
// semantics without a database.
//
// Transactions run under one store-wide mutex, which makes them trivially
// serializable; all work happens on a deep-copied staging area that replaces
// the committed state only when the transaction function returns nil. The
// store can be told to fail upcoming transactions with a conflict to exercise
// retry behavior, and takes an injectable clock for deterministic timestamps.
package memstore
