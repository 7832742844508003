// Package notify delivers best-effort notifications around workflow
// transitions: HTML email over SMTP plus Kafka events for out-of-band
// consumers. Nothing in this package may fail a transition; every error is
// swallowed and logged.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sagar1503/ApprovalPortal/internal/model"
	"github.com/sagar1503/ApprovalPortal/internal/store"
)

// Sender delivers one email. Implementations: SMTPSender.
type Sender interface {
	Send(ctx context.Context, recipients []string, subject, htmlBody string) error
}

// Dispatcher renders and fans out notifications. A nil sender or producer
// disables that channel.
type Dispatcher struct {
	store    store.Store
	sender   Sender
	producer *EventProducer
	log      *logrus.Logger
}

func NewDispatcher(st store.Store, log *logrus.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{store: st, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type DispatcherOption func(*Dispatcher)

func WithSender(s Sender) DispatcherOption {
	return func(d *Dispatcher) { d.sender = s }
}

func WithEventProducer(p *EventProducer) DispatcherOption {
	return func(d *Dispatcher) { d.producer = p }
}

// ActionRequired notifies the request's new assignee that it waits on them.
func (d *Dispatcher) ActionRequired(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) {
	if req.AssigneeID == nil {
		return
	}
	d.deliver(ctx, "action_required", *req.AssigneeID, req, actor, comment,
		"Action required: "+req.Title,
		"This request is waiting for your review.")
}

// StatusChanged notifies the requester of any status change.
func (d *Dispatcher) StatusChanged(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) {
	d.deliver(ctx, "status_changed", req.RequesterID, req, actor, comment,
		"Request update: "+req.Title,
		"The status of your request has changed.")
}

// InfoRequested notifies the requester that an approver needs their input.
func (d *Dispatcher) InfoRequested(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) {
	d.deliver(ctx, "info_requested", req.RequesterID, req, actor, comment,
		"Information needed: "+req.Title,
		"An approver has asked for more information on your request.")
}

// InfoProvided notifies the approver that the requester has responded.
func (d *Dispatcher) InfoProvided(ctx context.Context, req model.Request, actor model.UserIdentity, comment string) {
	if req.AssigneeID == nil {
		return
	}
	d.deliver(ctx, "info_provided", *req.AssigneeID, req, actor, comment,
		"Response received: "+req.Title,
		"The requester has provided the information you asked for.")
}

func (d *Dispatcher) deliver(ctx context.Context, kind string, recipientID int64, req model.Request, actor model.UserIdentity, comment, subject, lead string) {
	entry := d.log.WithFields(logrus.Fields{
		"request":   req.ID,
		"kind":      kind,
		"recipient": recipientID,
	})

	if d.producer != nil {
		if err := d.producer.Publish(ctx, Event{
			Kind:        kind,
			RequestID:   req.ID,
			RecipientID: recipientID,
			Status:      req.Status,
			ActorID:     actor.ID,
			Comment:     comment,
		}); err != nil {
			entry.WithError(err).Warn("notification event publish failed")
		}
	}

	if d.sender == nil {
		return
	}
	recipient, err := d.store.GetUserIdentity(ctx, recipientID)
	if err != nil {
		entry.WithError(err).Warn("recipient identity lookup failed, skipping email")
		return
	}
	if recipient.Email == "" {
		entry.Warn("recipient has no email on file")
		return
	}

	body, err := renderEmail(req, actor, comment, lead)
	if err != nil {
		entry.WithError(err).Warn("notification template render failed")
		return
	}
	if err := d.sender.Send(ctx, []string{recipient.Email}, subject, body); err != nil {
		entry.WithError(err).Warn("notification send failed")
	}
}
