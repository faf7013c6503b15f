package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiTelo/API-Football/internal/models"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestSendVerificationBuildsLink(t *testing.T) {
	sender := &recordingSender{}
	m := NewMailer(sender, "https://club.example/", zerolog.Nop())

	err := m.SendVerification(context.Background(), models.User{Email: "alice@x.com", FirstName: "Alice"}, "abc.def")
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "alice@x.com", msg.To)
	assert.Equal(t, "Confirmez votre email", msg.Subject)
	assert.Contains(t, msg.HTML, "https://club.example/verify-email?token=abc.def")
	assert.Contains(t, msg.HTML, "Bonjour Alice")
}

func TestSendEscapesNames(t *testing.T) {
	sender := &recordingSender{}
	m := NewMailer(sender, "https://club.example", zerolog.Nop())

	err := m.SendTwoFactorCode(context.Background(), models.User{Email: "a@x.com", FirstName: "<script>"}, "123456")
	require.NoError(t, err)

	assert.NotContains(t, sender.sent[0].HTML, "<script>")
	assert.Contains(t, sender.sent[0].HTML, "&lt;script&gt;")
	assert.Contains(t, sender.sent[0].HTML, "<strong>123456</strong>")
}

func TestSendPasswordResetWrapsSenderError(t *testing.T) {
	boom := errors.New("smtp down")
	m := NewMailer(&recordingSender{err: boom}, "https://club.example", zerolog.Nop())

	err := m.SendPasswordReset(context.Background(), models.User{Email: "a@x.com"}, "tok")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), KindPasswordReset)
}
