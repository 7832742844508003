package workflow

import "github.com/sagar1503/ApprovalPortal/internal/model"

// StateKind discriminates the request lifecycle states the engine branches
// on. The store keeps only the display status label; the kind is derived
// from it so the engine never compares stage-name strings.
type StateKind int

const (
	// StateActive means the request sits at a stage waiting for its
	// assignee to act.
	StateActive StateKind = iota
	// StateInfoRequested means work is parked on the requester.
	StateInfoRequested
	// StateApproved is terminal.
	StateApproved
	// StateRejected is terminal.
	StateRejected
)

// State is the derived lifecycle state of a request.
type State struct {
	Kind       StateKind
	StageOrder int
}

// StateOf derives the lifecycle state from a request's persisted fields.
func StateOf(req model.Request) State {
	switch req.Status {
	case model.StatusApproved:
		return State{Kind: StateApproved, StageOrder: req.StageOrder}
	case model.StatusRejected:
		return State{Kind: StateRejected, StageOrder: req.StageOrder}
	case model.StatusInfoRequested:
		return State{Kind: StateInfoRequested, StageOrder: req.StageOrder}
	default:
		return State{Kind: StateActive, StageOrder: req.StageOrder}
	}
}

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s.Kind == StateApproved || s.Kind == StateRejected
}
