// Package audit records the immutable trail of transition attempts. The
// store write is synchronous and authoritative; Kafka streaming and S3
// archiving are best-effort side channels for downstream consumers and
// long-term compliance copies.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sagar1503/ApprovalPortal/internal/model"
	"github.com/sagar1503/ApprovalPortal/internal/store"
)

// Recorder appends audit entries and fans them out to the optional side
// channels. A nil streamer or archiver disables that channel.
type Recorder struct {
	store    store.Store
	streamer *Streamer
	archiver Archiver
	log      *logrus.Logger
	now      func() time.Time
}

func NewRecorder(st store.Store, log *logrus.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: st, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type RecorderOption func(*Recorder)

// WithStreamer attaches a Kafka streamer for audit events.
func WithStreamer(s *Streamer) RecorderOption {
	return func(r *Recorder) { r.streamer = s }
}

// WithArchiver attaches an object-storage archiver for snapshots.
func WithArchiver(a Archiver) RecorderOption {
	return func(r *Recorder) { r.archiver = a }
}

// Record appends one audit entry capturing the request as it was at the
// moment of the attempt. The store append is fatal on failure; streaming
// and archiving failures are logged only.
func (r *Recorder) Record(ctx context.Context, req model.Request, action model.Action, actor model.UserIdentity, comment string) error {
	snapshot, err := req.Snapshot()
	if err != nil {
		r.log.WithError(err).WithField("request", req.ID).Warn("snapshot failed, recording without it")
		snapshot = nil
	}
	entry := model.AuditEntry{
		ID:        uuid.New(),
		RequestID: req.ID,
		Action:    action,
		ActorID:   actor.ID,
		Comment:   comment,
		Snapshot:  snapshot,
		Timestamp: r.now().UTC(),
	}

	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		return err
	}

	if r.streamer != nil {
		if err := r.streamer.Publish(ctx, entry); err != nil {
			r.log.WithError(err).WithField("entry", entry.ID).Warn("audit stream publish failed")
		}
	}
	if r.archiver != nil {
		if err := r.archiver.ArchiveEntry(ctx, entry); err != nil {
			r.log.WithError(err).WithField("entry", entry.ID).Warn("audit archive failed")
		}
	}
	return nil
}
