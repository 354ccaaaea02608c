package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/certmailer/internal/config"
	"github.com/certmailer/internal/model"
)

var (
	ErrNotConfigured    = errors.New("mailer: sender address not configured")
	ErrInvalidRecipient = errors.New("mailer: invalid recipient address")
)

// Config holds the SMTP account used for every outgoing message.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	DryRun      bool
}

// NewConfig builds a mailer Config from the process configuration. The
// account identity doubles as the sender address.
func NewConfig(c *config.Config) *Config {
	return &Config{
		Host:        c.SMTPHost,
		Port:        c.SMTPPort,
		Username:    c.SMTPUser,
		Password:    c.SMTPPass,
		FromName:    c.SMTPFromName,
		FromAddress: c.SMTPUser,
		DryRun:      c.DryRun,
	}
}

type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []model.Attachment
}

// Mailer sends emails via SMTP.
type Mailer struct {
	cfg    *Config
	sendFn func(Message) error
	now    func() time.Time
}

func New(cfg *Config) *Mailer {
	m := &Mailer{cfg: cfg, now: time.Now}
	if cfg.DryRun {
		m.sendFn = m.logOnly
	} else {
		m.sendFn = m.smtpSend
	}
	return m
}

// SendCertificates emails all of a team's certificates in one message.
// to may list several addresses separated by commas or semicolons, with or
// without display names. Nothing is sent when there is no recipient or no
// attachment.
func (m *Mailer) SendCertificates(ctx context.Context, team, to string, attachments []model.Attachment) error {
	if strings.TrimSpace(to) == "" || len(attachments) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	recipients, err := parseRecipients(to)
	if err != nil {
		return err
	}

	return m.sendFn(Message{
		To:      recipients,
		Subject: fmt.Sprintf("Certificates for Team: %s", team),
		Body: fmt.Sprintf(
			"Dear Team %s,\n\nPlease find attached the participation certificates for your team members.\n\nBest regards,\nOrganizing Team",
			team,
		),
		Attachments: attachments,
	})
}

// parseRecipients returns the bare addresses listed in a recipient cell.
func parseRecipients(to string) ([]string, error) {
	list, err := mail.ParseAddressList(strings.ReplaceAll(to, ";", ","))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidRecipient, to, err)
	}

	addrs := make([]string, 0, len(list))
	for _, a := range list {
		addrs = append(addrs, a.Address)
	}
	return addrs, nil
}

func (m *Mailer) smtpSend(msg Message) error {
	if m.cfg.FromAddress == "" {
		return ErrNotConfigured
	}

	raw, err := m.formatMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.FromAddress, msg.To, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// logOnly composes the message and logs it instead of delivering it.
func (m *Mailer) logOnly(msg Message) error {
	raw, err := m.formatMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	names := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		names = append(names, att.Filename)
	}
	slog.Info("dry run: email not sent",
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"attachments", names,
		"bytes", len(raw),
	)
	return nil
}

func (m *Mailer) from() string {
	addr := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromAddress}
	return addr.String()
}

// formatMessage builds a multipart/mixed message: a plain-text part followed
// by one base64 part per attachment.
func (m *Mailer) formatMessage(msg Message) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	textHeader.Set("Content-Transfer-Encoding", "8bit")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(normalizeNewlines(msg.Body))); err != nil {
		return nil, err
	}

	for _, att := range msg.Attachments {
		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", att.ContentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))

		attPart, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, err
		}
		if err := writeBase64(attPart, att.Data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n", writer.Boundary())
	buf.WriteString("\r\n")
	buf.Write(body.Bytes())

	return buf.Bytes(), nil
}

// writeBase64 writes data in 76-character lines per RFC 2045.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		if _, err := w.Write([]byte(encoded[i:end] + "\r\n")); err != nil {
			return err
		}
	}
	return nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
