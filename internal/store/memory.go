package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagar1503/ApprovalPortal/internal/model"
)

// MemStore is an in-memory Store used by tests and local development.
type MemStore struct {
	mu          sync.RWMutex
	requests    map[uuid.UUID]model.Request
	catalogs    map[string][]model.StageDefinition
	audit       []model.AuditEntry
	delegations []model.Delegation
	users       map[int64]model.UserIdentity
}

func NewMemStore() *MemStore {
	return &MemStore{
		requests: map[uuid.UUID]model.Request{},
		catalogs: map[string][]model.StageDefinition{},
		users:    map[int64]model.UserIdentity{},
	}
}

// SeedCatalog registers the approval matrix for a category.
func (m *MemStore) SeedCatalog(category string, stages ...model.StageDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]model.StageDefinition(nil), stages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StageOrder < sorted[j].StageOrder })
	m.catalogs[category] = sorted
}

// SeedUser registers a user identity.
func (m *MemStore) SeedUser(u model.UserIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// SeedDelegation registers a delegation row.
func (m *MemStore) SeedDelegation(d model.Delegation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegations = append(m.delegations, d)
}

func copyJSON(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return append(json.RawMessage(nil), raw...)
}

func (m *MemStore) CreateRequest(ctx context.Context, in CreateRequestInput) (model.Request, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	now := time.Now().UTC()
	req := model.Request{
		ID:                  in.ID,
		Title:               in.Title,
		Category:            in.Category,
		Status:              in.Status,
		StageOrder:          in.StageOrder,
		AssigneeID:          in.AssigneeID,
		RequesterID:         in.RequesterID,
		RequesterDelegateID: in.RequesterDelegateID,
		Payload:             copyJSON(in.Payload, "{}"),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return req, nil
}

func (m *MemStore) GetRequest(ctx context.Context, id uuid.UUID) (model.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return model.Request{}, ErrNotFound
	}
	return req, nil
}

func (m *MemStore) UpdateRequestState(ctx context.Context, id uuid.UUID, status string, stageOrder int, assigneeID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.StageOrder = stageOrder
	req.AssigneeID = assigneeID
	req.UpdatedAt = time.Now().UTC()
	m.requests[id] = req
	return nil
}

func (m *MemStore) GetStageCatalog(ctx context.Context, category string) ([]model.StageDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.StageDefinition(nil), m.catalogs[category]...), nil
}

func (m *MemStore) AppendAuditEntry(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *MemStore) GetAuditHistory(ctx context.Context, requestID uuid.UUID) ([]model.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var history []model.AuditEntry
	for _, entry := range m.audit {
		if entry.RequestID == requestID {
			history = append(history, entry)
		}
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Timestamp.After(history[j].Timestamp) })
	return history, nil
}

func (m *MemStore) GetActiveDelegation(ctx context.Context, approverID int64, at time.Time) (*int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Delegation
	for i := range m.delegations {
		d := m.delegations[i]
		if d.ApproverID != approverID || !d.Active(at) {
			continue
		}
		if best == nil || d.StartsAt.Before(best.StartsAt) {
			best = &d
		}
	}
	if best == nil {
		return nil, nil
	}
	v := best.DelegateID
	return &v, nil
}

func (m *MemStore) GetUserIdentity(ctx context.Context, userID int64) (model.UserIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return model.UserIdentity{}, ErrNotFound
	}
	return u, nil
}

func (m *MemStore) ListRequestsByRequester(ctx context.Context, userID int64) ([]model.Request, error) {
	return m.list(func(r model.Request) bool {
		return r.RequesterID == userID || (r.RequesterDelegateID != nil && *r.RequesterDelegateID == userID)
	}, 0)
}

func (m *MemStore) ListRequestsByAssignee(ctx context.Context, userID int64) ([]model.Request, error) {
	return m.list(func(r model.Request) bool {
		return r.AssigneeID != nil && *r.AssigneeID == userID
	}, 0)
}

func (m *MemStore) ListRequests(ctx context.Context, limit int) ([]model.Request, error) {
	return m.list(func(model.Request) bool { return true }, limit)
}

func (m *MemStore) list(match func(model.Request) bool, limit int) ([]model.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Request
	for _, r := range m.requests {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) ListActedRequestIDs(ctx context.Context, actorID int64) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := map[uuid.UUID]time.Time{}
	for _, entry := range m.audit {
		if entry.ActorID != actorID {
			continue
		}
		if ts, ok := latest[entry.RequestID]; !ok || entry.Timestamp.After(ts) {
			latest[entry.RequestID] = entry.Timestamp
		}
	}
	ids := make([]uuid.UUID, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return latest[ids[i]].After(latest[ids[j]]) })
	return ids, nil
}

func (m *MemStore) Ping(ctx context.Context) error { return nil }
