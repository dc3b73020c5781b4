package mailer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"woodslot/internal/config"
	"woodslot/internal/domain"

	"github.com/rs/zerolog"
)

var ErrInvalidRecipient = errors.New("invalid recipient address")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers plain-text UTF-8 mail through an SMTP relay.
type SMTPSender struct {
	addr   string
	from   string
	auth   smtp.Auth
	send   sendFunc
	now    func() time.Time
	logger *zerolog.Logger
}

func NewSMTPSender(cfg config.MailConfig, logger *zerolog.Logger) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr:   net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		from:   cfg.From,
		auth:   auth,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return ErrInvalidRecipient
	}

	msg := buildMessage(s.from, to, subject, body, s.now())
	if err := s.send(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	s.logger.Debug().Str("to", to).Msg("email sent")
	return nil
}

func buildMessage(from, to, subject, body string, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogSender writes outgoing mail to the log instead of delivering it. Used
// when no SMTP host is configured.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return ErrInvalidRecipient
	}
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email not delivered: smtp disabled")
	return nil
}

// New picks the SMTP sender when a host is configured, else the log sender.
func New(cfg config.MailConfig, logger *zerolog.Logger) domain.EmailSender {
	if cfg.SMTPHost == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg, logger)
}

// SlotFreedBody is the text sent to subscribers when a place frees up on day.
func SlotFreedBody(day string) string {
	return fmt.Sprintf("Bonjour, une place s'est libérée pour le %s. Réservez vite !", day)
}
