// Package ledger provides the storage behind a Coup table: a key/value store
// for the engine's records and a hash-chained journal of committed events.
//
// # Core Components
//
// Memory and SQLite: Key/value stores implementing the engine's Ledger
// capability. Memory is for tests and throwaway tables; SQLite persists a
// table across restarts and applies its schema migrations on Open.
//
// Blockchain: An append-only log of committed game events with cryptographic
// hash chaining for tamper detection.
//
// Block: A single event with its kind, JSON payload and the link to the
// previous block.
//
// # Security Properties
//
// The blockchain provides:
//   - Verifiability: Anyone can verify the integrity of the entire chain
//   - Auditability: Complete history of the public game events
//   - Tamper detection: Any modification breaks the hash chain
//
// The journal only ever sees public events. Sealed roles never reach it.
package ledger
