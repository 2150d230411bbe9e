package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

type smtpConfig struct{}

func (smtpConfig) GetSMTPHost() string          { return "smtp.example.com" }
func (smtpConfig) GetSMTPPort() int             { return 587 }
func (smtpConfig) GetSMTPUsername() string      { return "user" }
func (smtpConfig) GetSMTPPassword() string      { return "secret" }
func (smtpConfig) GetEmailFromAddress() string  { return "bot@bsconsultoria.com.br" }
func (smtpConfig) GetEmailFromName() string     { return "BS Consultoria" }
func (smtpConfig) GetBrokerNotifyEmail() string { return "corretor@bsconsultoria.com.br" }
func (smtpConfig) IsSMTPEnabled() bool          { return true }

func capture(t *testing.T) (*SMTPSender, *[]*gomail.Msg) {
	t.Helper()
	var sent []*gomail.Msg
	loc := time.FixedZone("BRT", -3*60*60)
	s := NewSMTPSender(smtpConfig{}, loc).WithTransport(func(_ context.Context, msg *gomail.Msg) error {
		sent = append(sent, msg)
		return nil
	})
	return s, &sent
}

func body(t *testing.T, msg *gomail.Msg) string {
	t.Helper()
	parts := msg.GetParts()
	require.NotEmpty(t, parts)
	content, err := parts[0].GetContent()
	require.NoError(t, err)
	return string(content)
}

func TestSendHotLead(t *testing.T) {
	s, sent := capture(t)

	err := s.SendHotLead(context.Background(), HotLead{
		PhoneNumber:     "5511987654321",
		CustomerName:    "Maria Souza",
		Score:           82,
		PreviousQuality: "warm",
		Indicators:      []string{"orçamento informado", "interesse em visita"},
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	msg := (*sent)[0]
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"corretor@bsconsultoria.com.br"}, rcpts)
	assert.Equal(t, []string{"Lead quente: Maria Souza"}, msg.GetGenHeader(gomail.HeaderSubject))

	html := body(t, msg)
	assert.Contains(t, html, "5511987654321")
	assert.Contains(t, html, "82")
	assert.Contains(t, html, "interesse em visita")
}

func TestSendVisitBookedFormatsLocalTime(t *testing.T) {
	s, sent := capture(t)
	start := time.Date(2026, 10, 20, 17, 30, 0, 0, time.UTC)

	err := s.SendVisitBooked(context.Background(), VisitBooked{
		PhoneNumber:   "5511987654321",
		PropertyID:    125,
		PropertyTitle: "Apartamento Jardins",
		StartTime:     &start,
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	msg := (*sent)[0]
	assert.Equal(t, []string{"Visita agendada: 5511987654321"}, msg.GetGenHeader(gomail.HeaderSubject))
	html := body(t, msg)
	assert.Contains(t, html, "20/10/2026 14:30")
	assert.Contains(t, html, "Apartamento Jardins (#125)")
}

func TestSendVisitBookedWithoutStartTime(t *testing.T) {
	s, sent := capture(t)

	require.NoError(t, s.SendVisitBooked(context.Background(), VisitBooked{PhoneNumber: "5511987654321", CustomerName: "João"}))
	assert.Contains(t, body(t, (*sent)[0]), "a confirmar")
}

func TestTransportErrorPropagates(t *testing.T) {
	s := NewSMTPSender(smtpConfig{}, nil).WithTransport(func(context.Context, *gomail.Msg) error {
		return errors.New("connection refused")
	})

	err := s.SendHotLead(context.Background(), HotLead{PhoneNumber: "5511987654321"})
	assert.ErrorContains(t, err, "connection refused")
}
