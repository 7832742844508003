package notify

import (
	"context"
	"errors"
	"io"
	"net/smtp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagar1503/ApprovalPortal/internal/model"
	"github.com/sagar1503/ApprovalPortal/internal/store"
)

type capturingSender struct {
	recipients []string
	subject    string
	body       string
	err        error
}

func (c *capturingSender) Send(_ context.Context, recipients []string, subject, htmlBody string) error {
	c.recipients = recipients
	c.subject = subject
	c.body = htmlBody
	return c.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func approverID(v int64) *int64 { return &v }

func TestActionRequiredEmailsAssignee(t *testing.T) {
	mem := store.NewMemStore()
	mem.SeedUser(model.UserIdentity{ID: 42, Login: "fin", Email: "fin@corp.test", DisplayName: "Finance"})
	sender := &capturingSender{}
	d := NewDispatcher(mem, testLogger(), WithSender(sender))

	req := model.Request{
		ID: uuid.New(), Title: "Annual leave", Category: "Leave",
		Status: "Finance Approval", StageOrder: 2, AssigneeID: approverID(42), RequesterID: 100,
	}
	d.ActionRequired(context.Background(), req, model.UserIdentity{ID: 7, DisplayName: "Manager"}, "please review")

	assert.Equal(t, []string{"fin@corp.test"}, sender.recipients)
	assert.Equal(t, "Action required: Annual leave", sender.subject)
	assert.Contains(t, sender.body, "Annual leave")
	assert.Contains(t, sender.body, "please review")
	assert.Contains(t, sender.body, "Manager")
}

func TestActionRequiredWithoutAssigneeIsNoop(t *testing.T) {
	sender := &capturingSender{}
	d := NewDispatcher(store.NewMemStore(), testLogger(), WithSender(sender))

	d.ActionRequired(context.Background(), model.Request{ID: uuid.New()}, model.UserIdentity{}, "")

	assert.Empty(t, sender.recipients)
}

func TestStatusChangedSkipsUnknownRecipient(t *testing.T) {
	sender := &capturingSender{}
	d := NewDispatcher(store.NewMemStore(), testLogger(), WithSender(sender))

	req := model.Request{ID: uuid.New(), Title: "Leave", Status: model.StatusApproved, RequesterID: 100}
	d.StatusChanged(context.Background(), req, model.UserIdentity{ID: 7}, "")

	assert.Empty(t, sender.recipients)
}

func TestSendFailureIsSwallowed(t *testing.T) {
	mem := store.NewMemStore()
	mem.SeedUser(model.UserIdentity{ID: 100, Email: "alice@corp.test"})
	sender := &capturingSender{err: errors.New("smtp down")}
	d := NewDispatcher(mem, testLogger(), WithSender(sender))

	req := model.Request{ID: uuid.New(), Title: "Leave", Status: model.StatusRejected, RequesterID: 100}
	d.StatusChanged(context.Background(), req, model.UserIdentity{ID: 7}, "no budget")
	// No panic, no error surfaced; the transition already committed.
}

func TestRenderEmailStatusColors(t *testing.T) {
	tests := []struct {
		status string
		color  string
	}{
		{model.StatusApproved, "#10B981"},
		{model.StatusRejected, "#EF4444"},
		{model.StatusInfoRequested, "#F59E0B"},
		{"Finance Approval", "#3B82F6"},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			body, err := renderEmail(model.Request{ID: uuid.New(), Title: "T", Status: tc.status}, model.UserIdentity{}, "", "lead")
			require.NoError(t, err)
			assert.Contains(t, body, tc.color)
			assert.Contains(t, body, tc.status)
		})
	}
}

func TestRenderEmailEscapesComment(t *testing.T) {
	body, err := renderEmail(model.Request{ID: uuid.New(), Title: "T"}, model.UserIdentity{}, `<script>alert(1)</script>`, "lead")
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestSMTPSenderBuildsMIMEMessage(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Addr: "mail.corp.test:587", From: "portal@corp.test"})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err = sender.Send(context.Background(), []string{"fin@corp.test"}, "Action required", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, "mail.corp.test:587", gotAddr)
	assert.Equal(t, "portal@corp.test", gotFrom)
	assert.Equal(t, []string{"fin@corp.test"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Action required\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(msg, "<p>hi</p>"))
}

func TestSMTPSenderRequiresConfig(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{})
	assert.Error(t, err)
}
