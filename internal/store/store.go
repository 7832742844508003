package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sagar1503/ApprovalPortal/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence capability consumed by the workflow engine and
// the HTTP layer. Implementations: PGStore (Postgres) and MemStore.
type Store interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (model.Request, error)
	GetRequest(ctx context.Context, id uuid.UUID) (model.Request, error)
	// UpdateRequestState is the single point of observable state change for
	// a transition. A nil assigneeID clears the assignee.
	UpdateRequestState(ctx context.Context, id uuid.UUID, status string, stageOrder int, assigneeID *int64) error

	// GetStageCatalog returns the approval matrix for a category ordered by
	// stage order ascending. An empty slice means the category has no
	// configured stages.
	GetStageCatalog(ctx context.Context, category string) ([]model.StageDefinition, error)

	AppendAuditEntry(ctx context.Context, entry model.AuditEntry) error
	// GetAuditHistory returns the audit trail for a request, newest first.
	GetAuditHistory(ctx context.Context, requestID uuid.UUID) ([]model.AuditEntry, error)

	// GetActiveDelegation returns the delegate covering the approver at the
	// given instant, or nil when no delegation is active. When windows
	// overlap the earliest starting row wins.
	GetActiveDelegation(ctx context.Context, approverID int64, at time.Time) (*int64, error)

	GetUserIdentity(ctx context.Context, userID int64) (model.UserIdentity, error)

	ListRequestsByRequester(ctx context.Context, userID int64) ([]model.Request, error)
	ListRequestsByAssignee(ctx context.Context, userID int64) ([]model.Request, error)
	ListRequests(ctx context.Context, limit int) ([]model.Request, error)
	// ListActedRequestIDs returns the distinct ids of requests the actor has
	// recorded audit entries against, newest activity first.
	ListActedRequestIDs(ctx context.Context, actorID int64) ([]uuid.UUID, error)

	Ping(ctx context.Context) error
}

// CreateRequestInput carries the fields needed to persist a new request at
// its initial stage.
type CreateRequestInput struct {
	ID                  uuid.UUID
	Title               string
	Category            string
	Status              string
	StageOrder          int
	AssigneeID          *int64
	RequesterID         int64
	RequesterDelegateID *int64
	Payload             json.RawMessage
}

func ensureJSON(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return raw
}
