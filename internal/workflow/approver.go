package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sagar1503/ApprovalPortal/internal/directory"
	"github.com/sagar1503/ApprovalPortal/internal/model"
	"github.com/sagar1503/ApprovalPortal/internal/store"
)

// Resolver turns a stage definition into the concrete user to assign.
// Every lookup it performs is fault-isolated: failures are logged and the
// defined fallback applies, so resolution never fails a transition.
type Resolver struct {
	store store.Store
	dir   directory.Directory
	log   *logrus.Logger
	now   func() time.Time
}

func NewResolver(st store.Store, dir directory.Directory, log *logrus.Logger) *Resolver {
	return &Resolver{store: st, dir: dir, log: log, now: time.Now}
}

// ResolveApprover returns the user id to assign for a stage, or nil when
// the stage must be left unassigned. Static stages use the matrix value
// directly; manager stages resolve the effective requester's manager with
// the matrix value as fallback. Whatever the path, an active delegation
// replaces the candidate.
func (r *Resolver) ResolveApprover(ctx context.Context, stage model.StageDefinition, req model.Request) *int64 {
	var candidate *int64
	switch stage.ApproverType {
	case model.ApproverUser, model.ApproverGroup:
		candidate = stage.ApproverValue
	case model.ApproverManager:
		if managerID, ok := r.resolveManager(ctx, req); ok {
			candidate = &managerID
		} else if stage.ApproverValue != nil {
			r.log.WithFields(logrus.Fields{
				"request":  req.ID,
				"stage":    stage.StageName,
				"fallback": *stage.ApproverValue,
			}).Info("no manager resolved, using matrix fallback")
			candidate = stage.ApproverValue
		}
	default:
		r.log.WithFields(logrus.Fields{
			"request":      req.ID,
			"approverType": stage.ApproverType,
		}).Warn("unknown approver type, using matrix value")
		candidate = stage.ApproverValue
	}
	return r.applyDelegation(ctx, req, candidate)
}

// resolveManager looks up the manager of the effective requester: the
// requester-delegate when the request was submitted on behalf of someone,
// the requester otherwise.
func (r *Resolver) resolveManager(ctx context.Context, req model.Request) (int64, bool) {
	effectiveID := req.RequesterID
	if req.RequesterDelegateID != nil {
		effectiveID = *req.RequesterDelegateID
	}

	identity, err := r.store.GetUserIdentity(ctx, effectiveID)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"request": req.ID,
			"user":    effectiveID,
		}).Warn("requester identity lookup failed")
		return 0, false
	}

	managerID, err := r.dir.GetManager(ctx, identity.Login)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"request": req.ID,
			"login":   identity.Login,
		}).Warn("manager lookup failed")
		return 0, false
	}
	return managerID, true
}

// applyDelegation swaps the candidate for an active delegate, uniformly for
// every resolution path. A lookup failure keeps the candidate.
func (r *Resolver) applyDelegation(ctx context.Context, req model.Request, candidate *int64) *int64 {
	if candidate == nil {
		return nil
	}
	delegate, err := r.store.GetActiveDelegation(ctx, *candidate, r.now().UTC())
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"request":  req.ID,
			"approver": *candidate,
		}).Warn("delegation lookup failed, keeping original approver")
		return candidate
	}
	if delegate != nil {
		r.log.WithFields(logrus.Fields{
			"request":  req.ID,
			"approver": *candidate,
			"delegate": *delegate,
		}).Info("routing to active delegate")
		return delegate
	}
	return candidate
}
