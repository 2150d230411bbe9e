// Package email sends broker notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
)

const (
	subjectHotLeadFmt     = "Lead quente: %s"
	subjectVisitBookedFmt = "Visita agendada: %s"
)

// HotLead describes a lead that moved to the hot tier.
type HotLead struct {
	PhoneNumber     string
	CustomerName    string
	Score           int
	PreviousQuality string
	Indicators      []string
}

// VisitBooked describes a visit confirmed by the calendar provider.
type VisitBooked struct {
	PhoneNumber   string
	CustomerName  string
	CustomerEmail string
	PropertyID    int
	PropertyTitle string
	StartTime     *time.Time
}

// Sender delivers broker notifications.
type Sender interface {
	SendHotLead(ctx context.Context, lead HotLead) error
	SendVisitBooked(ctx context.Context, visit VisitBooked) error
}

// NoopSender drops every notification.
type NoopSender struct{}

func (NoopSender) SendHotLead(context.Context, HotLead) error         { return nil }
func (NoopSender) SendVisitBooked(context.Context, VisitBooked) error { return nil }

// Transport hands a rendered message to the mail server.
type Transport func(ctx context.Context, msg *gomail.Msg) error

// SMTPSender implements Sender using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	to        string
	loc       *time.Location
	transport Transport
}

// NewSMTPSender builds a sender that notifies the broker inbox from cfg.
// Visit times are shown in loc, UTC when nil.
func NewSMTPSender(cfg config.SMTPConfig, loc *time.Location) *SMTPSender {
	if loc == nil {
		loc = time.UTC
	}
	s := &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		to:        cfg.GetBrokerNotifyEmail(),
		loc:       loc,
	}
	s.transport = s.dialAndSend
	return s
}

// WithTransport replaces the SMTP connection, mainly for tests.
func (s *SMTPSender) WithTransport(t Transport) *SMTPSender {
	s.transport = t
	return s
}

func (s *SMTPSender) send(ctx context.Context, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.to); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	return s.transport(ctx, msg)
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendHotLead(ctx context.Context, lead HotLead) error {
	name := displayName(lead.CustomerName, lead.PhoneNumber)
	content, err := renderEmailTemplate("hot_lead.html", hotLeadEmailData{
		baseEmailData: baseEmailData{
			Title:      "Lead quente",
			Heading:    "Novo lead quente",
			Subheading: name,
		},
		CustomerName:    name,
		PhoneNumber:     lead.PhoneNumber,
		Score:           lead.Score,
		PreviousQuality: lead.PreviousQuality,
		Indicators:      lead.Indicators,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, fmt.Sprintf(subjectHotLeadFmt, name), content)
}

func (s *SMTPSender) SendVisitBooked(ctx context.Context, visit VisitBooked) error {
	name := displayName(visit.CustomerName, visit.PhoneNumber)
	when := "a confirmar"
	if visit.StartTime != nil {
		when = visit.StartTime.In(s.loc).Format("02/01/2006 15:04")
	}
	content, err := renderEmailTemplate("visit_booked.html", visitBookedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Visita agendada",
			Heading: "Visita agendada",
		},
		CustomerName:  name,
		CustomerEmail: visit.CustomerEmail,
		PhoneNumber:   visit.PhoneNumber,
		PropertyID:    visit.PropertyID,
		PropertyTitle: visit.PropertyTitle,
		StartTime:     when,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, fmt.Sprintf(subjectVisitBookedFmt, name), content)
}

func displayName(name, phone string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return phone
}
