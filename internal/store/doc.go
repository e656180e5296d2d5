// Package store provides persistent storage for the agent directory using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces per entity family:
//
//   - AgentStore: agent records plus their derived search representations
//   - LinkStore: directed agent-to-agent relationships
//   - TraceStore: the execution trace forest
//   - TeamStore: teams and memberships
//   - TaskStore: team tasks and the blocking state machine
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Derived search state
//
// Agents carry two derived representations of their name and frontmatter: a
// normalized token column (tsv) indexed by FTS5, and a packed float32
// embedding computed by an external provider. The tsv column and the FTS5
// rows are recomputed inside every upsert transaction, so lexical search can
// never observe text older than the committed row. Embeddings are written as
// supplied by the caller and tracked by embedding_state:
//
//   - current: embedding reflects the latest text
//   - stale:   text changed but re-embedding failed; flagged for retry
//   - missing: never embedded
//
// # Task blocking
//
// team_tasks.blocked_by holds a JSON array of same-team task ids. Mutations
// re-evaluate status inside the mutating transaction, and task completion
// cascades to dependents found via json_each over the blocking sets. A
// dependent's blockers are re-read inside that transaction, never cached, so
// concurrent sibling completions serialize correctly.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads. The pragmas ride
// on the DSN so every pooled connection gets them:
//
//	_txlock=immediate
//	_pragma=journal_mode(WAL)
//	_pragma=foreign_keys(1)
//	_pragma=busy_timeout(5000)
//
// _txlock=immediate makes BEGIN take the write lock, so mutating transactions
// queue instead of reading stale snapshots or failing with SQLITE_BUSY.
//
// # Error Handling
//
// Sentinel errors distinguish the failure classes callers react to:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrValidation: malformed input, caller-correctable
//   - ErrReferentialConflict: delete blocked by live references
//   - ErrDuplicate: entity or membership already exists
//   - ErrParentNotFound, ErrCycleDetected: trace graph integrity
//   - ErrSelfBlock, ErrCrossTeamBlock, ErrUnknownBlocker: task graph integrity
//
// Integrity violations reject the mutation with no partial state change.
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewSQLiteStore(":memory:") or a t.TempDir() path for tests with real
// SQLite; there is no mock implementation.
package store
