package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagar1503/ApprovalPortal/internal/model"
)

// PGStore persists portal entities into Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Ping verifies connectivity to Postgres.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const requestColumns = `id, title, category, status, stage_order, assignee_id, requester_id, requester_delegate_id, payload, created_at, updated_at`

func scanRequest(row rowScanner) (model.Request, error) {
	var (
		req      model.Request
		assignee sql.NullInt64
		delegate sql.NullInt64
		payload  []byte
	)
	if err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Category,
		&req.Status,
		&req.StageOrder,
		&assignee,
		&req.RequesterID,
		&delegate,
		&payload,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return model.Request{}, err
	}
	if assignee.Valid {
		v := assignee.Int64
		req.AssigneeID = &v
	}
	if delegate.Valid {
		v := delegate.Int64
		req.RequesterDelegateID = &v
	}
	req.Payload = append(json.RawMessage(nil), payload...)
	return req, nil
}

func (s *PGStore) CreateRequest(ctx context.Context, in CreateRequestInput) (model.Request, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	query := `
		INSERT INTO requests (id, title, category, status, stage_order, assignee_id, requester_id, requester_delegate_id, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING ` + requestColumns + `
	`
	row := s.db.QueryRowContext(ctx, query,
		in.ID, in.Title, in.Category, in.Status, in.StageOrder,
		in.AssigneeID, in.RequesterID, in.RequesterDelegateID,
		ensureJSON(in.Payload, "{}"),
	)
	req, err := scanRequest(row)
	if err != nil {
		return model.Request{}, fmt.Errorf("insert request: %w", err)
	}
	return req, nil
}

func (s *PGStore) GetRequest(ctx context.Context, id uuid.UUID) (model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Request{}, ErrNotFound
		}
		return model.Request{}, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (s *PGStore) UpdateRequestState(ctx context.Context, id uuid.UUID, status string, stageOrder int, assigneeID *int64) error {
	const query = `
		UPDATE requests
		SET status=$2, stage_order=$3, assignee_id=$4, updated_at=NOW()
		WHERE id=$1
	`
	res, err := s.db.ExecContext(ctx, query, id, status, stageOrder, assigneeID)
	if err != nil {
		return fmt.Errorf("update request state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) GetStageCatalog(ctx context.Context, category string) ([]model.StageDefinition, error) {
	const query = `
		SELECT category, stage_order, stage_name, approver_type, approver_value, condition
		FROM stage_definitions
		WHERE category=$1
		ORDER BY stage_order
	`
	rows, err := s.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("query stage catalog: %w", err)
	}
	defer rows.Close()

	var catalog []model.StageDefinition
	for rows.Next() {
		var (
			stage     model.StageDefinition
			approver  sql.NullInt64
			condition []byte
		)
		if err := rows.Scan(&stage.Category, &stage.StageOrder, &stage.StageName, &stage.ApproverType, &approver, &condition); err != nil {
			return nil, fmt.Errorf("scan stage definition: %w", err)
		}
		if approver.Valid {
			v := approver.Int64
			stage.ApproverValue = &v
		}
		stage.Condition = append(json.RawMessage(nil), condition...)
		catalog = append(catalog, stage)
	}
	return catalog, rows.Err()
}

func (s *PGStore) AppendAuditEntry(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	const query = `
		INSERT INTO audit_entries (id, request_id, action, actor_id, comment, snapshot, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.RequestID, string(entry.Action), entry.ActorID,
		entry.Comment, ensureJSON(entry.Snapshot, "null"), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PGStore) GetAuditHistory(ctx context.Context, requestID uuid.UUID) ([]model.AuditEntry, error) {
	const query = `
		SELECT id, request_id, action, actor_id, comment, snapshot, ts
		FROM audit_entries
		WHERE request_id=$1
		ORDER BY ts DESC
	`
	rows, err := s.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var history []model.AuditEntry
	for rows.Next() {
		var (
			entry    model.AuditEntry
			action   string
			snapshot []byte
		)
		if err := rows.Scan(&entry.ID, &entry.RequestID, &action, &entry.ActorID, &entry.Comment, &snapshot, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = model.Action(action)
		entry.Snapshot = append(json.RawMessage(nil), snapshot...)
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (s *PGStore) GetActiveDelegation(ctx context.Context, approverID int64, at time.Time) (*int64, error) {
	// Overlapping windows: the earliest starting row wins, deterministically.
	const query = `
		SELECT delegate_id FROM delegations
		WHERE approver_id=$1 AND starts_at<=$2 AND ends_at>=$2
		ORDER BY starts_at, id
		LIMIT 1
	`
	var delegate int64
	if err := s.db.QueryRowContext(ctx, query, approverID, at).Scan(&delegate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query active delegation: %w", err)
	}
	return &delegate, nil
}

func (s *PGStore) GetUserIdentity(ctx context.Context, userID int64) (model.UserIdentity, error) {
	const query = `SELECT id, login, email, display_name FROM users WHERE id=$1`
	var u model.UserIdentity
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.Login, &u.Email, &u.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserIdentity{}, ErrNotFound
		}
		return model.UserIdentity{}, fmt.Errorf("get user identity: %w", err)
	}
	return u, nil
}

func (s *PGStore) ListRequestsByRequester(ctx context.Context, userID int64) ([]model.Request, error) {
	query := `
		SELECT ` + requestColumns + ` FROM requests
		WHERE requester_id=$1 OR requester_delegate_id=$1
		ORDER BY created_at DESC
	`
	return s.listRequests(ctx, query, userID)
}

func (s *PGStore) ListRequestsByAssignee(ctx context.Context, userID int64) ([]model.Request, error) {
	query := `
		SELECT ` + requestColumns + ` FROM requests
		WHERE assignee_id=$1
		ORDER BY created_at DESC
	`
	return s.listRequests(ctx, query, userID)
}

func (s *PGStore) ListRequests(ctx context.Context, limit int) ([]model.Request, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT ` + requestColumns + ` FROM requests
		ORDER BY created_at DESC
		LIMIT $1
	`
	return s.listRequests(ctx, query, limit)
}

func (s *PGStore) listRequests(ctx context.Context, query string, args ...interface{}) ([]model.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PGStore) ListActedRequestIDs(ctx context.Context, actorID int64) ([]uuid.UUID, error) {
	const query = `
		SELECT request_id FROM audit_entries
		WHERE actor_id=$1
		GROUP BY request_id
		ORDER BY MAX(ts) DESC
		LIMIT 200
	`
	rows, err := s.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("query acted requests: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan request id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
