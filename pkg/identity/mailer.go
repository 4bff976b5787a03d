package identity

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Mailer sends password-reset mail over SMTP.
type Mailer struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// NewMailer returns a Mailer, or nil when host is empty (mail disabled).
func NewMailer(host string, port int, from, username, password string) *Mailer {
	if host == "" {
		return nil
	}
	if port == 0 {
		port = 587
	}
	return &Mailer{Host: host, Port: port, From: from, Username: username, Password: password}
}

// SendReset mails a reset token to the given address.
func (m *Mailer) SendReset(to, token string) error {
	e := email.NewEmail()
	e.From = m.From
	e.To = []string{to}
	e.Subject = "Password reset"
	e.Text = []byte(fmt.Sprintf(
		"A password reset was requested for this address.\n\n"+
			"Reset token: %s\n\n"+
			"The token expires in one hour. If you did not request this, ignore this mail.\n", token))
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	return e.Send(addr, auth)
}
