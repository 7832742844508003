// Package model contains the canonical types shared by the approval portal:
// requests, stage definitions, delegations, audit entries and user identities.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TerminalStageOrder is the sentinel stage order assigned to requests that
// reached a terminal status (Approved or Rejected).
const TerminalStageOrder = 99

// Status labels a request carries outside of stage names.
const (
	StatusApproved      = "Approved"
	StatusRejected      = "Rejected"
	StatusInfoRequested = "Info Requested"
	StatusSubmitted     = "Submitted"
)

// Action is a workflow transition action.
type Action string

const (
	ActionSubmit      Action = "Submit"
	ActionApprove     Action = "Approve"
	ActionReject      Action = "Reject"
	ActionRequestInfo Action = "RequestInfo"
	ActionProvideInfo Action = "ProvideInfo"
)

// ParseAction validates a caller-supplied action label. Submit is not a
// valid transition action; it is recorded on creation only.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject, ActionRequestInfo, ActionProvideInfo:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ApproverType selects how a stage's approver is resolved.
type ApproverType string

const (
	// ApproverManager resolves the requester's manager via the directory,
	// falling back to the stage's approver value.
	ApproverManager ApproverType = "manager"
	// ApproverUser assigns the stage's approver value directly.
	ApproverUser ApproverType = "user"
	// ApproverGroup assigns the stage's approver value as a group id.
	ApproverGroup ApproverType = "group"
)

// Request is a business request routed through the approval workflow.
type Request struct {
	ID                  uuid.UUID       `json:"id"`
	Title               string          `json:"title"`
	Category            string          `json:"category"`
	Status              string          `json:"status"`
	StageOrder          int             `json:"stageOrder"`
	AssigneeID          *int64          `json:"assigneeId,omitempty"`
	RequesterID         int64           `json:"requesterId"`
	RequesterDelegateID *int64          `json:"requesterDelegateId,omitempty"`
	Payload             json.RawMessage `json:"payload,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Snapshot serializes the request for inclusion in an audit entry. A
// marshal failure is reported so the caller can decide whether to proceed
// with a partial record.
func (r Request) Snapshot() (json.RawMessage, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot request %s: %w", r.ID, err)
	}
	return b, nil
}

// StageDefinition is one row of the approval matrix for a category.
// Stage orders are positive, unique per category and need not be
// contiguous.
type StageDefinition struct {
	Category      string          `json:"category"`
	StageOrder    int             `json:"stageOrder"`
	StageName     string          `json:"stageName"`
	ApproverType  ApproverType    `json:"approverType"`
	ApproverValue *int64          `json:"approverValue,omitempty"`
	Condition     json.RawMessage `json:"condition,omitempty"`
}

// Delegation is a temporary out-of-office substitution for an approver.
type Delegation struct {
	ApproverID int64     `json:"approverId"`
	DelegateID int64     `json:"delegateId"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
}

// Active reports whether the delegation window covers the given instant.
func (d Delegation) Active(at time.Time) bool {
	return !at.Before(d.StartsAt) && !at.After(d.EndsAt)
}

// AuditEntry is one immutable record of a transition attempt. Entries are
// append-only and ordered by timestamp.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	RequestID uuid.UUID       `json:"requestId"`
	Action    Action          `json:"action"`
	ActorID   int64           `json:"actorId"`
	Comment   string          `json:"comment,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// UserIdentity is the directory-facing view of a portal user.
type UserIdentity struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}
