// Package workflow implements the approval transition engine: stage
// routing, conditional skip logic, approver resolution and the
// audit/notification orchestration around each state change.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sagar1503/ApprovalPortal/internal/model"
	"github.com/sagar1503/ApprovalPortal/internal/store"
)

var (
	// ErrNotAuthorized is returned when the acting user is not the current
	// assignee of the request.
	ErrNotAuthorized = errors.New("actor is not the current assignee")
	// ErrTerminalState is returned when a transition is attempted against
	// an approved or rejected request.
	ErrTerminalState = errors.New("request is in a terminal state")
)

// Recorder appends one immutable audit record per transition attempt.
type Recorder interface {
	Record(ctx context.Context, req model.Request, action model.Action, actor model.UserIdentity, comment string) error
}

// Notifier delivers best-effort notifications after a commit. Every method
// absorbs its own failures; none may block or fail a transition.
type Notifier interface {
	ActionRequired(ctx context.Context, req model.Request, actor model.UserIdentity, comment string)
	StatusChanged(ctx context.Context, req model.Request, actor model.UserIdentity, comment string)
	InfoRequested(ctx context.Context, req model.Request, actor model.UserIdentity, comment string)
	InfoProvided(ctx context.Context, req model.Request, actor model.UserIdentity, comment string)
}

// Engine orchestrates request transitions. All collaborators are injected;
// the engine holds no mutable state across calls.
type Engine struct {
	store    store.Store
	resolver *Resolver
	recorder Recorder
	notifier Notifier
	log      *logrus.Logger
}

func NewEngine(st store.Store, resolver *Resolver, recorder Recorder, notifier Notifier, log *logrus.Logger) *Engine {
	return &Engine{store: st, resolver: resolver, recorder: recorder, notifier: notifier, log: log}
}

// SubmitInput carries a new request to be routed to its first stage.
type SubmitInput struct {
	Title               string
	Category            string
	Payload             json.RawMessage
	RequesterDelegateID *int64
}

// Submit creates a request at the first stage of its category's catalog and
// assigns the first approver (manager lookup with matrix fallback, then
// delegation swap). An empty catalog leaves the request in the Submitted
// status at order 1 with no assignee.
func (e *Engine) Submit(ctx context.Context, in SubmitInput, actor model.UserIdentity) (model.Request, error) {
	if in.Title == "" || in.Category == "" {
		return model.Request{}, fmt.Errorf("title and category required")
	}

	catalog, err := e.store.GetStageCatalog(ctx, in.Category)
	if err != nil {
		return model.Request{}, fmt.Errorf("load stage catalog: %w", err)
	}

	status := model.StatusSubmitted
	stageOrder := 1
	var assignee *int64
	proto := model.Request{
		RequesterID:         actor.ID,
		RequesterDelegateID: in.RequesterDelegateID,
		Payload:             in.Payload,
	}
	if len(catalog) > 0 {
		first := catalog[0]
		status = first.StageName
		stageOrder = first.StageOrder
		assignee = e.resolver.ResolveApprover(ctx, first, proto)
	}

	req, err := e.store.CreateRequest(ctx, store.CreateRequestInput{
		Title:               in.Title,
		Category:            in.Category,
		Status:              status,
		StageOrder:          stageOrder,
		AssigneeID:          assignee,
		RequesterID:         actor.ID,
		RequesterDelegateID: in.RequesterDelegateID,
		Payload:             in.Payload,
	})
	if err != nil {
		return model.Request{}, fmt.Errorf("create request: %w", err)
	}

	if err := e.recorder.Record(ctx, req, model.ActionSubmit, actor, ""); err != nil {
		// The request already exists; losing the submit entry degrades the
		// trail but must not orphan the creation.
		e.log.WithError(err).WithField("request", req.ID).Error("audit submit entry failed")
	}
	if assignee != nil {
		e.notifier.ActionRequired(ctx, req, actor, "")
	}
	return req, nil
}

// Transition routes a request through one workflow action. The actor must
// be the current assignee. Authorization and commit failures propagate;
// every other collaborator failure is absorbed with its defined fallback.
func (e *Engine) Transition(ctx context.Context, req model.Request, action model.Action, comment string, actor model.UserIdentity) error {
	if StateOf(req).Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, req.Status)
	}
	if req.AssigneeID == nil || *req.AssigneeID != actor.ID {
		return ErrNotAuthorized
	}

	// One audit entry per attempt, snapshot taken before any mutation.
	if err := e.recorder.Record(ctx, req, action, actor, comment); err != nil {
		return fmt.Errorf("audit transition: %w", err)
	}

	switch action {
	case model.ActionReject:
		return e.reject(ctx, req, actor, comment)
	case model.ActionRequestInfo:
		return e.requestInfo(ctx, req, actor, comment)
	case model.ActionProvideInfo:
		return e.provideInfo(ctx, req, actor, comment)
	case model.ActionApprove:
		return e.approve(ctx, req, actor, comment)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (e *Engine) reject(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) error {
	if err := e.commit(ctx, &req, model.StatusRejected, model.TerminalStageOrder, nil); err != nil {
		return err
	}
	e.notifier.StatusChanged(ctx, req, actor, comment)
	return nil
}

func (e *Engine) requestInfo(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) error {
	requester := req.RequesterID
	if err := e.commit(ctx, &req, model.StatusInfoRequested, req.StageOrder, &requester); err != nil {
		return err
	}
	e.notifier.InfoRequested(ctx, req, actor, comment)
	return nil
}

// provideInfo hands the request back to the approver who most recently
// asked for information. There is no stored back-reference; the approver is
// reconstructed by scanning the audit history for the latest RequestInfo
// entry (O(history length), newest match wins).
func (e *Engine) provideInfo(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) error {
	stageName := e.stageLabel(ctx, req)

	var approverID *int64
	history, err := e.store.GetAuditHistory(ctx, req.ID)
	if err != nil {
		e.log.WithError(err).WithField("request", req.ID).Warn("audit history scan failed, keeping current assignee")
	} else {
		for _, entry := range history {
			if entry.Action == model.ActionRequestInfo {
				id := entry.ActorID
				approverID = &id
				break
			}
		}
	}

	if approverID == nil {
		// Degraded fallback: restore the stage label without reassigning.
		e.log.WithField("request", req.ID).Warn("no RequestInfo entry found in audit history")
		if err := e.commit(ctx, &req, stageName, req.StageOrder, req.AssigneeID); err != nil {
			return err
		}
		return nil
	}

	if err := e.commit(ctx, &req, stageName, req.StageOrder, approverID); err != nil {
		return err
	}
	e.notifier.InfoProvided(ctx, req, actor, comment)
	return nil
}

func (e *Engine) approve(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) error {
	catalog, err := e.store.GetStageCatalog(ctx, req.Category)
	if err != nil {
		return fmt.Errorf("load stage catalog: %w", err)
	}

	next := e.nextApplicableStage(catalog, req)
	if next == nil {
		if err := e.commit(ctx, &req, model.StatusApproved, model.TerminalStageOrder, nil); err != nil {
			return err
		}
		e.notifier.StatusChanged(ctx, req, actor, comment)
		return nil
	}

	assignee := e.resolver.ResolveApprover(ctx, *next, req)
	if err := e.commit(ctx, &req, next.StageName, next.StageOrder, assignee); err != nil {
		return err
	}
	if assignee != nil {
		e.notifier.ActionRequired(ctx, req, actor, comment)
	}
	e.notifier.StatusChanged(ctx, req, actor, comment)
	return nil
}

// nextApplicableStage advances through the catalog from the request's
// current order, skipping every stage whose condition evaluates false
// against the payload. The scan is forward-only and tolerates gaps in the
// order sequence; several consecutive stages may be skipped in one call.
func (e *Engine) nextApplicableStage(catalog []model.StageDefinition, req model.Request) *model.StageDefinition {
	candidate := nextAfter(catalog, req.StageOrder)
	for candidate != nil {
		if Evaluate(candidate.Condition, req.Payload) {
			return candidate
		}
		e.log.WithFields(logrus.Fields{
			"request": req.ID,
			"stage":   candidate.StageName,
			"order":   candidate.StageOrder,
		}).Info("stage condition not met, skipping")
		candidate = nextAfter(catalog, candidate.StageOrder)
	}
	return nil
}

// nextAfter returns the catalog entry with the smallest stage order
// strictly greater than the given order. The catalog is ordered ascending.
func nextAfter(catalog []model.StageDefinition, order int) *model.StageDefinition {
	for i := range catalog {
		if catalog[i].StageOrder > order {
			return &catalog[i]
		}
	}
	return nil
}

// stageLabel resolves the display name of the request's current stage from
// the catalog, synthesizing one when the stage has been removed from the
// matrix since the request entered it.
func (e *Engine) stageLabel(ctx context.Context, req model.Request) string {
	catalog, err := e.store.GetStageCatalog(ctx, req.Category)
	if err != nil {
		e.log.WithError(err).WithField("request", req.ID).Warn("stage catalog lookup failed for label")
		return fmt.Sprintf("Stage %d", req.StageOrder)
	}
	for _, stage := range catalog {
		if stage.StageOrder == req.StageOrder {
			return stage.StageName
		}
	}
	return fmt.Sprintf("Stage %d", req.StageOrder)
}

// commit performs the single observable state change of a transition and
// mirrors it onto the in-memory copy so notifications see the new state.
func (e *Engine) commit(ctx context.Context, req *model.Request, status string, stageOrder int, assigneeID *int64) error {
	if err := e.store.UpdateRequestState(ctx, req.ID, status, stageOrder, assigneeID); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	req.Status = status
	req.StageOrder = stageOrder
	req.AssigneeID = assigneeID
	return nil
}
