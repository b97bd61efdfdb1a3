package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender delivers one HTML email and returns its message id.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

// SMTPSender sends through a plain SMTP relay. PLAIN auth is used only when a
// username is configured.
type SMTPSender struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg, send: smtp.SendMail}
	if cfg.Username != "" {
		host := cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(s.cfg.From))
	msg := buildMessage(s.cfg.From, to, subject, htmlBody, id, time.Now())
	if err := s.send(s.cfg.Addr, s.auth, s.cfg.From, []string{to}, msg); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return id, nil
}

func buildMessage(from, to, subject, htmlBody, messageID string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.Bytes()
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return strings.Trim(addr[i+1:], "> ")
	}
	return "localhost"
}
