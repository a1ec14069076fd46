package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Kind identifies which email a job carries.
type Kind string

const (
	KindLogin           Kind = "login"
	KindSecurityAlert   Kind = "security_alert"
	KindPasswordReset   Kind = "password_reset"
	KindApproval        Kind = "approval"
	KindRejection       Kind = "rejection"
	KindNewRegistration Kind = "new_registration"
	KindPasswordChanged Kind = "password_changed"
)

const timeLayout = "Mon, 02 Jan 2006 15:04 MST"

// Each template defines a "subject" and a "body".
var rawTemplates = map[Kind]string{
	KindLogin: `{{define "subject"}}New sign-in to your admin account{{end}}
{{define "body"}}Hello {{.Name}},

Your admin account was signed in to on {{.When}}.

  Device:   {{.Device.Browser}} on {{.Device.OS}} ({{.Device.DeviceType}})
  Location: {{.Device.Location}}
  IP:       {{.Device.IP}}

If this was not you, change your password immediately and revoke your other sessions.
{{end}}`,

	KindSecurityAlert: `{{define "subject"}}Security alert for your admin account{{end}}
{{define "body"}}Hello {{.Name}},

We noticed activity on your admin account that needs your attention:
{{range .Findings}}
  - {{.}}{{end}}

  Device:   {{.Device.Browser}} on {{.Device.OS}}
  Location: {{.Device.Location}}
  IP:       {{.Device.IP}}
  Time:     {{.When}}

If you do not recognise this activity, reset your password now.
{{end}}`,

	KindPasswordReset: `{{define "subject"}}Your password reset code{{end}}
{{define "body"}}Hello {{.Name}},

Your password reset code is:

    {{.Code}}

It expires at {{.Expires}}. If you did not ask for a reset you can ignore this email.
{{end}}`,

	KindApproval: `{{define "subject"}}Your admin account has been approved{{end}}
{{define "body"}}Hello {{.Name}},

Your admin account ({{.Email}}) has been approved. You can now sign in.
{{end}}`,

	KindRejection: `{{define "subject"}}Your admin account request was declined{{end}}
{{define "body"}}Hello {{.Name}},

Your request for an admin account ({{.Email}}) was declined.{{if .Reason}}

Reason: {{.Reason}}{{end}}
{{end}}`,

	KindNewRegistration: `{{define "subject"}}New admin registration awaiting approval{{end}}
{{define "body"}}Hello {{.Name}},

{{.ApplicantName}} <{{.ApplicantEmail}}> registered for an admin account on {{.When}} and is waiting for approval.
{{end}}`,

	KindPasswordChanged: `{{define "subject"}}Your admin password was changed{{end}}
{{define "body"}}Hello {{.Name}},

The password for your admin account was changed on {{.When}}.{{if .Device.IP}}

  Device:   {{.Device.Browser}} on {{.Device.OS}}
  Location: {{.Device.Location}}
  IP:       {{.Device.IP}}{{end}}

All other sessions have been signed out. If this was not you, contact a principal administrator.
{{end}}`,
}

var templates = mustParse(rawTemplates)

func mustParse(raw map[Kind]string) map[Kind]*template.Template {
	out := make(map[Kind]*template.Template, len(raw))
	for kind, src := range raw {
		out[kind] = template.Must(template.New(string(kind)).Option("missingkey=zero").Parse(src))
	}
	return out
}

// render executes the subject and body of kind against data.
func render(kind Kind, data any) (subject, body string, err error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "subject", data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", kind, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := tmpl.ExecuteTemplate(&buf, "body", data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", kind, err)
	}
	return subject, strings.TrimLeft(buf.String(), "\n"), nil
}
