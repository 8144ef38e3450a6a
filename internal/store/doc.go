// Package store implements the durable tier: a single persisted collection of
// price observations with an in-memory dedup index, crash-consistent via
// atomic replace-on-write snapshots.
//
// The in-memory state is canonical between flushes; the snapshot file is its
// persisted image. Dedup enforcement across the whole system is defined in
// terms of this package's index, since the durable tier is the tier of record.
package store
