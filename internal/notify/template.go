package notify

import (
	"bytes"
	"html/template"

	"github.com/sagar1503/ApprovalPortal/internal/model"
)

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Segoe UI, Arial, sans-serif; color: #1F2937;">
  <p>{{.Lead}}</p>
  <table cellpadding="4" cellspacing="0">
    <tr><td><strong>Request</strong></td><td>{{.Request.Title}}</td></tr>
    <tr><td><strong>Reference</strong></td><td>{{.Request.ID}}</td></tr>
    <tr><td><strong>Category</strong></td><td>{{.Request.Category}}</td></tr>
    <tr><td><strong>Status</strong></td>
        <td><span style="color: {{.StatusColor}}; font-weight: 600;">{{.Request.Status}}</span></td></tr>
    <tr><td><strong>Acted by</strong></td><td>{{.Actor.DisplayName}}</td></tr>
    {{if .Comment}}<tr><td><strong>Comment</strong></td><td>{{.Comment}}</td></tr>{{end}}
  </table>
  <p style="color: #6B7280; font-size: 12px;">Sent by the Approval Portal. Do not reply to this message.</p>
</body>
</html>`))

type emailData struct {
	Lead        string
	Request     model.Request
	Actor       model.UserIdentity
	Comment     string
	StatusColor string
}

func renderEmail(req model.Request, actor model.UserIdentity, comment, lead string) (string, error) {
	var buf bytes.Buffer
	err := emailTmpl.Execute(&buf, emailData{
		Lead:        lead,
		Request:     req,
		Actor:       actor,
		Comment:     comment,
		StatusColor: statusColor(req.Status),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// statusColor maps the status label to the badge color semantics the portal
// uses: green for approved, red for rejected, amber while parked on the
// requester, blue for anything still pending.
func statusColor(status string) string {
	switch status {
	case model.StatusApproved:
		return "#10B981"
	case model.StatusRejected:
		return "#EF4444"
	case model.StatusInfoRequested:
		return "#F59E0B"
	default:
		return "#3B82F6"
	}
}
