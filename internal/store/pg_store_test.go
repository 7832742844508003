package store_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagar1503/ApprovalPortal/internal/model"
	"github.com/sagar1503/ApprovalPortal/internal/store"
)

const requestCols = "id, title, category, status, stage_order, assignee_id, requester_id, requester_delegate_id, payload, created_at, updated_at"

func newMock(t *testing.T) (*store.PGStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	return store.NewPGStore(db), mock, func() { db.Close() }
}

func requestRow(id uuid.UUID, status string, stageOrder int, assignee interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(splitCols()).
		AddRow(id.String(), "Annual leave", "Leave", status, stageOrder, assignee, int64(100), nil, []byte(`{"Amount":"500"}`), now, now)
}

func splitCols() []string {
	return []string{"id", "title", "category", "status", "stage_order", "assignee_id", "requester_id", "requester_delegate_id", "payload", "created_at", "updated_at"}
}

func TestGetRequest(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	id := uuid.New()
	mock.ExpectQuery("SELECT " + requestCols + " FROM requests WHERE").
		WithArgs(id).
		WillReturnRows(requestRow(id, "Manager Approval", 1, int64(7)))

	req, err := st.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, req.ID)
	assert.Equal(t, "Manager Approval", req.Status)
	assert.Equal(t, 1, req.StageOrder)
	require.NotNil(t, req.AssigneeID)
	assert.Equal(t, int64(7), *req.AssigneeID)
	assert.Nil(t, req.RequesterDelegateID)
	assert.JSONEq(t, `{"Amount":"500"}`, string(req.Payload))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRequestNotFound(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	id := uuid.New()
	mock.ExpectQuery("SELECT " + requestCols + " FROM requests WHERE").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetRequest(context.Background(), id)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestDefaultsPayload(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO requests").
		WithArgs(sqlmock.AnyArg(), "Annual leave", "Leave", "Manager Approval", 1,
			sqlmock.AnyArg(), int64(100), sqlmock.AnyArg(), []byte("{}")).
		WillReturnRows(requestRow(id, "Manager Approval", 1, int64(7)))

	assignee := int64(7)
	req, err := st.CreateRequest(context.Background(), store.CreateRequestInput{
		Title:       "Annual leave",
		Category:    "Leave",
		Status:      "Manager Approval",
		StageOrder:  1,
		AssigneeID:  &assignee,
		RequesterID: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, id, req.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRequestState(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	id := uuid.New()
	mock.ExpectExec("UPDATE requests").
		WithArgs(id, model.StatusApproved, model.TerminalStageOrder, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.UpdateRequestState(context.Background(), id, model.StatusApproved, model.TerminalStageOrder, nil)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRequestStateMissingRow(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	id := uuid.New()
	mock.ExpectExec("UPDATE requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.UpdateRequestState(context.Background(), id, model.StatusRejected, model.TerminalStageOrder, nil)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStageCatalog(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	rows := sqlmock.NewRows([]string{"category", "stage_order", "stage_name", "approver_type", "approver_value", "condition"}).
		AddRow("Leave", 1, "Manager Approval", "manager", nil, []byte("null")).
		AddRow("Leave", 2, "Finance Approval", "user", int64(42), []byte(`{"Amount":{">":1000}}`))
	mock.ExpectQuery("SELECT category, stage_order, stage_name, approver_type, approver_value, condition").
		WithArgs("Leave").
		WillReturnRows(rows)

	catalog, err := st.GetStageCatalog(context.Background(), "Leave")
	require.NoError(t, err)
	require.Len(t, catalog, 2)

	assert.Equal(t, model.ApproverManager, catalog[0].ApproverType)
	assert.Nil(t, catalog[0].ApproverValue)
	assert.Equal(t, "Finance Approval", catalog[1].StageName)
	require.NotNil(t, catalog[1].ApproverValue)
	assert.Equal(t, int64(42), *catalog[1].ApproverValue)
	assert.JSONEq(t, `{"Amount":{">":1000}}`, string(catalog[1].Condition))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAuditEntryFillsDefaults(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	mock.ExpectExec("INSERT INTO audit_entries").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Approve", int64(7), "ok", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.AppendAuditEntry(context.Background(), model.AuditEntry{
		RequestID: uuid.New(),
		Action:    model.ActionApprove,
		ActorID:   7,
		Comment:   "ok",
		Snapshot:  json.RawMessage(`{"id":"x"}`),
	})
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAuditHistory(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	reqID := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "request_id", "action", "actor_id", "comment", "snapshot", "ts"}).
		AddRow(uuid.New().String(), reqID.String(), "RequestInfo", int64(7), "need receipts", []byte("null"), now).
		AddRow(uuid.New().String(), reqID.String(), "Submit", int64(100), "", []byte("null"), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT id, request_id, action, actor_id, comment, snapshot, ts").
		WithArgs(reqID).
		WillReturnRows(rows)

	history, err := st.GetAuditHistory(context.Background(), reqID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ActionRequestInfo, history[0].Action)
	assert.Equal(t, int64(7), history[0].ActorID)
	assert.Equal(t, model.ActionSubmit, history[1].Action)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveDelegation(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	at := time.Now().UTC()
	mock.ExpectQuery("SELECT delegate_id FROM delegations").
		WithArgs(int64(42), at).
		WillReturnRows(sqlmock.NewRows([]string{"delegate_id"}).AddRow(int64(88)))

	delegate, err := st.GetActiveDelegation(context.Background(), 42, at)
	require.NoError(t, err)
	require.NotNil(t, delegate)
	assert.Equal(t, int64(88), *delegate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveDelegationNone(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	at := time.Now().UTC()
	mock.ExpectQuery("SELECT delegate_id FROM delegations").
		WithArgs(int64(42), at).
		WillReturnError(sql.ErrNoRows)

	delegate, err := st.GetActiveDelegation(context.Background(), 42, at)
	assert.NoError(t, err)
	assert.Nil(t, delegate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserIdentityNotFound(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	mock.ExpectQuery("SELECT id, login, email, display_name FROM users").
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetUserIdentity(context.Background(), 5)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActedRequestIDs(t *testing.T) {
	st, mock, closeFn := newMock(t)
	defer closeFn()

	first := uuid.New()
	second := uuid.New()
	mock.ExpectQuery("SELECT request_id FROM audit_entries").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}).
			AddRow(first.String()).
			AddRow(second.String()))

	ids, err := st.ListActedRequestIDs(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}
