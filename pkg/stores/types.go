package stores

import (
	"context"
	"errors"
	"time"

	"github.com/openfroyo/froyo-git/pkg/engine"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Event represents an append-only timeline event of a run
type Event struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id"`
	RunID       *string   `json:"run_id,omitempty"`
	OperationID *string   `json:"operation_id,omitempty"`
	Target      string    `json:"target,omitempty"`
	Type        string    `json:"type"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	Details     *string   `json:"details,omitempty"` // JSON blob
	Timestamp   time.Time `json:"timestamp"`
}

// EventFilter narrows GetEvents. Nil fields match everything.
type EventFilter struct {
	RunID *string
	Level *string
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run journal
	engine.Journal
	GetRun(ctx context.Context, id string) (*engine.RunRecord, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*engine.RunRecord, error)
	ListSteps(ctx context.Context, runID string) ([]*engine.StepRecord, error)
	DeleteRun(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, filter EventFilter, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
