// ABOUTME: Store interfaces and data types for coven-directory persistence
// ABOUTME: Defines Agent, Trace, Team, TeamTask structs and the storage interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrValidation is returned for malformed input that the caller can correct
var ErrValidation = errors.New("validation failed")

// ErrReferentialConflict is returned when a delete is blocked by live references
var ErrReferentialConflict = errors.New("referenced by other records")

// ErrDuplicate is returned when an insert collides with an existing row
var ErrDuplicate = errors.New("already exists")

// ErrParentNotFound is returned when a trace references a parent that does not exist
var ErrParentNotFound = errors.New("parent trace not found")

// ErrCycleDetected is returned when a trace mutation would make a trace its own ancestor
var ErrCycleDetected = errors.New("trace cycle detected")

// ErrSelfBlock is returned when a task lists itself as a blocker
var ErrSelfBlock = errors.New("task cannot block itself")

// ErrCrossTeamBlock is returned when a blocker belongs to a different team
var ErrCrossTeamBlock = errors.New("blocker belongs to a different team")

// ErrUnknownBlocker is returned when a blocker id does not resolve to a task
var ErrUnknownBlocker = errors.New("unknown blocker task")

// EmbeddingState values for Agent.EmbeddingState
const (
	EmbeddingStateCurrent = "current" // embedding reflects the latest text
	EmbeddingStateStale   = "stale"   // text changed but re-embedding failed, flagged for retry
	EmbeddingStateMissing = "missing" // never embedded
)

// Agent is a directory record for one agent. TSV and Embedding are derived
// from Name and Frontmatter; TSV is recomputed inside every upsert so it can
// never lag the committed text.
type Agent struct {
	ID             string
	Name           string
	Frontmatter    string
	TSV            string // normalized token text backing the full-text index
	Embedding      []byte // packed little-endian float32 vector, nil if missing
	EmbeddingState string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AgentLink is a directed edge between two agents (delegation, supervision, ...).
// Links carry no acyclicity requirement; mutual links are legal.
type AgentLink struct {
	ID            string
	SourceAgentID string
	TargetAgentID string
	Kind          string
	Metadata      string // optional JSON blob
	CreatedAt     time.Time
}

// Trace is one execution run, optionally nested under a parent trace.
// The parent reference is immutable once set.
type Trace struct {
	ID            string
	ParentTraceID string // empty for roots
	Payload       string
	CreatedAt     time.Time
}

// Team status values
const (
	TeamStatusActive   = "active"
	TeamStatusArchived = "archived"
)

// Team member roles
const (
	RoleLead   = "lead"
	RoleMember = "member"
)

// Team groups agents under exactly one lead agent.
type Team struct {
	ID          string
	Name        string
	LeadAgentID string
	Description string
	Status      string
	Settings    string // JSON blob
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TeamMember is one (team, agent) membership row. Exactly one row per team
// has role "lead", and that agent equals the team's LeadAgentID.
type TeamMember struct {
	TeamID   string
	AgentID  string
	Role     string
	JoinedAt time.Time
}

// Task status values
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusBlocked    = "blocked"
)

// TeamTask is a unit of team work with explicit blocking dependencies.
// BlockedBy may only reference tasks in the same team.
type TeamTask struct {
	ID           string
	TeamID       string
	Subject      string
	Description  string
	Status       string
	OwnerAgentID string // empty for unowned tasks
	BlockedBy    []string
	Priority     int
	Result       string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// OwnerName is populated by list queries that join the agents table.
	OwnerName string
}

// LexicalHit is one full-text match with its raw relevance score
// (higher is better; the range is query-dependent).
type LexicalHit struct {
	AgentID string
	Score   float64
}

// EmbeddingRow is one stored agent embedding for similarity scans.
type EmbeddingRow struct {
	AgentID   string
	Embedding []byte
	State     string
}

// AgentStore persists agent records and their derived search representations.
type AgentStore interface {
	// UpsertAgent inserts or replaces an agent. The TSV column and the
	// full-text index are recomputed from Name and Frontmatter inside the
	// same transaction. Embedding and EmbeddingState are written as given.
	UpsertAgent(ctx context.Context, agent *Agent) error

	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetAgents(ctx context.Context, ids []string) (map[string]*Agent, error)
	ListAgents(ctx context.Context, limit int) ([]*Agent, error)

	// DeleteAgent removes an agent. Returns ErrReferentialConflict while the
	// agent is referenced by links, teams, memberships, or tasks.
	DeleteAgent(ctx context.Context, id string) error

	// UpdateEmbedding stores a freshly computed embedding, but only if the
	// record's updated_at still equals expectedUpdatedAt. Returns ErrNotFound
	// when the guard fails, so retriers never clobber a newer revision.
	UpdateEmbedding(ctx context.Context, id string, embedding []byte, expectedUpdatedAt time.Time) error

	// ListStaleEmbeddings returns agents flagged for embedding retry.
	ListStaleEmbeddings(ctx context.Context, limit int) ([]*Agent, error)

	// SearchLexical runs a full-text query (already tokenized via FTSQuery)
	// and returns the best matches with raw relevance scores.
	SearchLexical(ctx context.Context, matchQuery string, limit int) ([]LexicalHit, error)

	// ListEmbeddings returns every stored embedding for similarity scans.
	ListEmbeddings(ctx context.Context) ([]EmbeddingRow, error)
}

// LinkStore persists directed agent-to-agent relationships.
type LinkStore interface {
	CreateLink(ctx context.Context, link *AgentLink) error
	GetLink(ctx context.Context, id string) (*AgentLink, error)
	ListLinksFrom(ctx context.Context, agentID string) ([]*AgentLink, error)
	ListLinksTo(ctx context.Context, agentID string) ([]*AgentLink, error)
	DeleteLink(ctx context.Context, id string) error
}

// TraceStore persists the execution trace forest.
type TraceStore interface {
	// CreateTrace appends a trace. When ParentTraceID is set it must resolve
	// to an existing trace or ErrParentNotFound is returned and nothing is
	// written.
	CreateTrace(ctx context.Context, trace *Trace) error

	GetTrace(ctx context.Context, id string) (*Trace, error)
	ListChildren(ctx context.Context, traceID string) ([]*Trace, error)
}

// TeamStore persists teams and memberships.
type TeamStore interface {
	// CreateTeam inserts the team and its lead membership row atomically.
	CreateTeam(ctx context.Context, team *Team) error

	GetTeam(ctx context.Context, id string) (*Team, error)
	ListTeams(ctx context.Context, limit int) ([]*Team, error)
	ArchiveTeam(ctx context.Context, id string) error

	AddTeamMember(ctx context.Context, teamID, agentID string) error
	RemoveTeamMember(ctx context.Context, teamID, agentID string) error
	ListTeamMembers(ctx context.Context, teamID string) ([]*TeamMember, error)
}

// TaskStore persists team tasks and runs the blocking state machine.
// Every mutation re-evaluates status inside a single transaction.
type TaskStore interface {
	CreateTask(ctx context.Context, task *TeamTask) error
	GetTask(ctx context.Context, id string) (*TeamTask, error)
	ListTasksByTeam(ctx context.Context, teamID string) ([]*TeamTask, error)

	// SetTaskBlockers replaces the blocking set and re-evaluates status.
	SetTaskBlockers(ctx context.Context, taskID string, blockerIDs []string) error

	// StartTask moves a pending task to in_progress.
	StartTask(ctx context.Context, taskID string) error

	// CompleteTask marks the task completed and, in the same transaction,
	// re-evaluates every task that listed it as a blocker. Returns the ids of
	// tasks that transitioned out of blocked.
	CompleteTask(ctx context.Context, taskID string, result string) ([]string, error)

	// ReassignTask changes the owner; status is untouched.
	ReassignTask(ctx context.Context, taskID, ownerAgentID string) error
}

// Store is the full persistence surface, implemented by SQLiteStore.
type Store interface {
	AgentStore
	LinkStore
	TraceStore
	TeamStore
	TaskStore

	// Ping verifies the underlying database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
