// Package mailer emails finalized action plans over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wneessen/go-mail"
)

// Config holds the SMTP account used to send plans.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// AppName is the display name of the sender.
	AppName string
}

// Mailer sends plain-text plans with an HTML alternative.
type Mailer struct {
	cfg    Config
	client *mail.Client
}

// New creates a mailer. The connection is opened per message.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and sender are required")
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &Mailer{cfg: cfg, client: client}, nil
}

// Send delivers body to one recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := Compose(m.cfg.AppName, m.cfg.From, to, subject, body)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

var markdownStripper = strings.NewReplacer("**", "", "#", "", "•", "-")

// Compose builds the message: markdown stripped to plain text, plus the
// original text preformatted as HTML.
func Compose(appName, from, to, subject, body string) (*mail.Msg, error) {
	// plans are short-lined text; 8bit keeps the parts readable
	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))

	if err := msg.FromFormat(appName, from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, markdownStripper.Replace(body))
	msg.AddAlternativeString(mail.TypeTextHTML,
		`<pre style="font-family: ui-monospace, Menlo, Consolas, monospace; white-space: pre-wrap">`+
			html.EscapeString(body)+`</pre>`)

	return msg, nil
}
