package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// InviteEmailData fills the invite email.
type InviteEmailData struct {
	SiteName    string
	InviterName string
	RoleName    string
	Link        string // empty when the account was provisioned directly
	TempPass    string // set only for directly provisioned accounts
	ExpiresIn   string // e.g. "7 dias"
}

// BuildInviteEmail renders the invite email with both HTML and text bodies.
// The caller sets To.
func BuildInviteEmail(data InviteEmailData) Email {
	if data.SiteName == "" {
		data.SiteName = "Igreja Bola de Neve"
	}
	return Email{
		Subject:  fmt.Sprintf("Convite - %s", data.SiteName),
		TextBody: buildInviteText(data),
		HTMLBody: buildInviteHTML(data),
	}
}

func buildInviteText(data InviteEmailData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá! Você foi convidado(a) por %s para fazer parte do sistema %s como %s.\n\n",
		data.InviterName, data.SiteName, data.RoleName)
	if data.Link != "" {
		b.WriteString("Acesse o link para completar seu cadastro:\n")
		b.WriteString(data.Link + "\n\n")
	}
	if data.TempPass != "" {
		fmt.Fprintf(&b, "Sua senha temporária é: %s\nVocê deverá trocá-la no primeiro acesso.\n\n", data.TempPass)
	}
	if data.ExpiresIn != "" {
		fmt.Fprintf(&b, "Este convite expira em %s.\n\n", data.ExpiresIn)
	}
	b.WriteString("Deus abençoe!\n")
	return b.String()
}

var inviteTmpl = template.Must(template.New("invite").Parse(inviteHTMLTemplate))

func buildInviteHTML(data InviteEmailData) string {
	var buf bytes.Buffer
	_ = inviteTmpl.Execute(&buf, data)
	return buf.String()
}

const inviteHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Convite</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #1d4ed8;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Você foi convidado(a) por <strong>{{.InviterName}}</strong> para fazer parte do sistema como <strong>{{.RoleName}}</strong>.
              </p>
              {{if .Link}}
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center" style="padding-bottom: 24px;">
                    <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #1d4ed8; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 600; border-radius: 6px;">Completar cadastro</a>
                  </td>
                </tr>
              </table>
              {{end}}
              {{if .TempPass}}
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 24px; text-align: center; margin-bottom: 24px;">
                <p style="margin: 0 0 8px; font-size: 14px; color: #6b7280;">Senha temporária</p>
                <span style="font-size: 22px; font-weight: 700; color: #1f2937; font-family: 'Courier New', monospace;">{{.TempPass}}</span>
              </div>
              {{end}}
              {{if .ExpiresIn}}
              <p style="margin: 0; font-size: 14px; color: #6b7280; text-align: center;">
                Este convite expira em {{.ExpiresIn}}.
              </p>
              {{end}}
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">Deus abençoe!</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
