// Package sequence allocates monotonically increasing integers per named
// counter. Every backend performs a single atomic increment-and-fetch in the
// store; there is no read-then-write path and no client-side fallback, so two
// concurrent callers never observe the same value.
//
// Backends:
//
//   - [RedisGenerator]: INCR on one key per counter.
//   - [PostgresGenerator]: upsert-increment with RETURNING on a counters table.
//   - [MemoryGenerator]: mutex-guarded map for tests and local runs.
package sequence
