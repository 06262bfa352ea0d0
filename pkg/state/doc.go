// Package state persists the single application record.
//
// The record is one object keyed by a fixed, process-wide key. It maps a
// finite set of subsection names (one per wizard section) to the validated
// payload saved for that section.
//
//   - Store is the four-operation contract: Replace, Read, Delete and
//     UpdateSubsection.
//   - UpdateSubsection overwrites only the named slot and creates the record
//     when none exists.
//   - Reading a store that was never written reports absent (ok == false),
//     not an error.
//   - Backend failures are wrapped in *PersistenceError and satisfy
//     errors.Is(err, ErrPersistence).
//
// Backends: MemoryStore (tests, ephemeral use), FileStore (local JSON file),
// RedisStore, PostgresStore. Instrumented decorates any Store with prometheus
// metrics and otel spans.
package state
