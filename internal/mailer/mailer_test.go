package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"woodslot/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSender_Send(t *testing.T) {
	logger := zerolog.Nop()
	s := NewSMTPSender(config.MailConfig{
		SMTPHost: "smtp.example.org",
		SMTPPort: 587,
		Username: "atelier",
		Password: "secret",
		From:     "atelier@example.org",
	}, &logger)
	s.now = func() time.Time { return time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	err := s.Send(context.Background(), "jean@example.org", "Une place s'est libérée !", SlotFreedBody("2025-06-07"))
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.org:587", gotAddr)
	assert.Equal(t, "atelier@example.org", gotFrom)
	assert.Equal(t, []string{"jean@example.org"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: jean@example.org\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8")
	assert.True(t, strings.HasSuffix(msg, "Bonjour, une place s'est libérée pour le 2025-06-07. Réservez vite !\r\n"))
}

func TestSMTPSender_Errors(t *testing.T) {
	logger := zerolog.Nop()
	s := NewSMTPSender(config.MailConfig{SMTPHost: "smtp.example.org", SMTPPort: 25, From: "a@example.org"}, &logger)
	assert.Nil(t, s.auth)

	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := s.Send(context.Background(), "jean@example.org", "s", "b")
	assert.ErrorContains(t, err, "connection refused")

	err = s.Send(context.Background(), "jean@example.org\r\nBcc: x@example.org", "s", "b")
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "jean@example.org", "s", "b"), context.Canceled)
}

func TestNew(t *testing.T) {
	logger := zerolog.Nop()

	assert.IsType(t, &LogSender{}, New(config.MailConfig{}, &logger))
	assert.IsType(t, &SMTPSender{}, New(config.MailConfig{SMTPHost: "smtp.example.org", From: "a@example.org"}, &logger))
}

func TestLogSender(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	s := NewLogSender(&logger)

	require.NoError(t, s.Send(context.Background(), "jean@example.org", "subject", "body"))
	assert.Contains(t, buf.String(), "jean@example.org")
	assert.ErrorIs(t, s.Send(context.Background(), "", "s", "b"), ErrInvalidRecipient)
}
