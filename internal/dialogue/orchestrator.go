package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	catalogdomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	leadservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduling"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/keylock"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

const defaultGenerationTimeout = 30 * time.Second

// Catalog is the slice of the property catalog the dialogue needs.
type Catalog interface {
	Snapshot(ctx context.Context) ([]catalogdomain.Property, error)
	GetProperty(ctx context.Context, id int) (catalogdomain.Property, error)
	MediaURLs(ctx context.Context, p catalogdomain.Property) []string
}

// Scheduler starts visit booking cycles.
type Scheduler interface {
	RequestVisit(ctx context.Context, req scheduling.VisitRequest) (scheduling.VisitResult, error)
}

// Messenger delivers outbound WhatsApp messages.
type Messenger interface {
	SendMessage(ctx context.Context, phoneNumber, text string) error
	SendMedia(ctx context.Context, phoneNumber, mediaURL, caption string) error
}

// ReplySanitizer removes announced-but-unperformed actions from replies.
type ReplySanitizer interface {
	Sanitize(candidateText string, wasAboutToSendMedia bool) string
	AckToken() string
}

// LeadWriter applies lead mutations while the caller holds the phone lock.
type LeadWriter interface {
	Apply(ctx context.Context, m leadservice.Mutation) (leadservice.Result, error)
}

// Branch names the path a message took.
type Branch string

const (
	BranchScheduling      Branch = "scheduling"
	BranchPropertyDetails Branch = "property_details"
	BranchReply           Branch = "reply"
	BranchFallback        Branch = "generation_failed"
)

// EffectKind names an outbound action.
type EffectKind string

const (
	EffectSendText  EffectKind = "send_text"
	EffectSendMedia EffectKind = "send_media"
)

// SideEffect is one outbound action produced by a message.
type SideEffect struct {
	Kind       EffectKind `json:"kind"`
	Text       string     `json:"text,omitempty"`
	PropertyID int        `json:"propertyId,omitempty"`
	MediaURLs  []string   `json:"mediaUrls,omitempty"`
	Caption    string     `json:"caption,omitempty"`
	Delivered  bool       `json:"delivered"`
}

// Outcome is what HandleInboundMessage did for one message.
type Outcome struct {
	ReplyText   string                  `json:"replyText"`
	Branch      Branch                  `json:"branch"`
	SideEffects []SideEffect            `json:"sideEffects"`
	Scheduling  *scheduling.VisitResult `json:"scheduling,omitempty"`
}

// Deps groups the orchestrator collaborators.
type Deps struct {
	Sessions          conversation.Store
	Leads             LeadWriter
	Locker            keylock.Locker
	Generator         Generator
	Catalog           Catalog
	Scheduler         Scheduler
	Sanitizer         ReplySanitizer
	Messenger         Messenger
	Replies           config.ReplyTuning
	FallbackPhone     string
	GenerationTimeout time.Duration
	Log               *logger.Logger
}

// Orchestrator handles inbound customer messages end to end.
type Orchestrator struct {
	sessions      conversation.Store
	leads         LeadWriter
	locker        keylock.Locker
	generator     Generator
	catalog       Catalog
	scheduler     Scheduler
	sanitizer     ReplySanitizer
	messenger     Messenger
	replies       config.ReplyTuning
	fallbackPhone string
	timeout       time.Duration
	now           func() time.Time
	log           *logger.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	timeout := d.GenerationTimeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &Orchestrator{
		sessions:      d.Sessions,
		leads:         d.Leads,
		locker:        d.Locker,
		generator:     d.Generator,
		catalog:       d.Catalog,
		scheduler:     d.Scheduler,
		sanitizer:     d.Sanitizer,
		messenger:     d.Messenger,
		replies:       d.Replies,
		fallbackPhone: d.FallbackPhone,
		timeout:       timeout,
		now:           time.Now,
		log:           d.Log.WithComponent("dialogue"),
	}
}

// WithClock overrides the time source.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// HandleInboundMessage records the customer message, generates a reply,
// applies the signal branches and sends the result. phoneNumber must be
// canonical. Collaborator failures degrade to fallback replies; only state
// persistence failures are returned.
func (o *Orchestrator) HandleInboundMessage(ctx context.Context, phoneNumber, rawText string) (Outcome, error) {
	text := strings.TrimSpace(rawText)
	if phoneNumber == "" || text == "" {
		return Outcome{}, errors.New("inbound message without phone or text")
	}
	log := o.log.WithContext(ctx).WithPhone(phoneNumber)

	var snapshot *conversation.Session
	err := o.locked(ctx, phoneNumber, func(s *conversation.Session, now time.Time) (leaddomain.Update, error) {
		s.Append(conversation.RoleCustomer, text, now)
		snapshot = s.Clone()
		return leaddomain.Update{AddMessages: 1, ActivityAt: &now}, nil
	})
	if err != nil {
		return Outcome{}, err
	}

	gen, genErr := o.generate(ctx, snapshot)
	if genErr != nil {
		log.CollaboratorFailure("llm", "generate reply", genErr)
		out := Outcome{ReplyText: o.replies.GenerationFailure, Branch: BranchFallback}
		if err := o.recordReply(ctx, phoneNumber, out.ReplyText, Generation{}, 0); err != nil {
			return Outcome{}, err
		}
		o.deliver(ctx, phoneNumber, &out)
		return out, nil
	}

	out, engaged := o.branch(ctx, snapshot, gen)
	if err := o.recordReply(ctx, phoneNumber, out.ReplyText, gen, engaged); err != nil {
		return Outcome{}, err
	}
	o.deliver(ctx, phoneNumber, &out)
	log.Info("inbound message handled", "branch", out.Branch, "effects", len(out.SideEffects))
	return out, nil
}

func (o *Orchestrator) generate(ctx context.Context, s *conversation.Session) (Generation, error) {
	gctx := GenerationContext{
		PhoneNumber:     s.PhoneNumber,
		History:         s.History,
		Customer:        s.CustomerInfo,
		SchedulingState: s.State(),
	}

	props, err := o.catalog.Snapshot(ctx)
	if err != nil {
		o.log.WithPhone(s.PhoneNumber).CollaboratorFailure("catalog", "snapshot", err)
	}
	gctx.Catalog = props
	if s.ActivePropertyID != nil {
		if p, err := o.catalog.GetProperty(ctx, *s.ActivePropertyID); err == nil {
			gctx.ActiveProperty = &p
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.generator.Generate(genCtx, gctx)
}

// branch evaluates the signals in precedence order and returns the outcome
// plus the property the customer engaged with, if any.
func (o *Orchestrator) branch(ctx context.Context, s *conversation.Session, gen Generation) (Outcome, int) {
	if gen.Scheduling.WantsToSchedule {
		return o.schedule(ctx, s, gen)
	}

	if gen.ShouldSendPropertyDetails {
		id := gen.PropertyToSend
		if id == 0 && s.ActivePropertyID != nil {
			id = *s.ActivePropertyID
		}
		if id > 0 {
			p, err := o.catalog.GetProperty(ctx, id)
			if err == nil {
				return o.propertyDetails(ctx, p, gen), p.ID
			}
			if !errors.Is(err, catalogdomain.ErrPropertyNotFound) {
				o.log.WithPhone(s.PhoneNumber).CollaboratorFailure("catalog", "get property", err)
			}
		}
	}

	reply := o.sanitizer.Sanitize(gen.Reply, false)
	if reply == "" {
		reply = o.replies.GenerationFailure
	}
	return Outcome{ReplyText: reply, Branch: BranchReply}, 0
}

func (o *Orchestrator) schedule(ctx context.Context, s *conversation.Session, gen Generation) (Outcome, int) {
	out := Outcome{Branch: BranchScheduling}
	id := gen.Scheduling.PropertyID
	if id == 0 && s.ActivePropertyID != nil {
		id = *s.ActivePropertyID
	}
	if id <= 0 {
		out.ReplyText = o.replies.PickProperty
		return out, 0
	}

	customer := s.CustomerInfo
	customer.Name = firstNonEmpty(gen.CustomerInfo.Name, customer.Name)
	customer.Email = firstNonEmpty(gen.CustomerInfo.Email, customer.Email)

	res, err := o.scheduler.RequestVisit(ctx, scheduling.VisitRequest{
		PhoneNumber:   s.PhoneNumber,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		PropertyID:    id,
		Source:        leaddomain.SourceWhatsApp,
	})
	if err != nil {
		o.log.WithPhone(s.PhoneNumber).Error("visit request failed", "error", err, "propertyId", id)
		out.ReplyText = o.render(o.replies.SchedulingFailure, customer.Name, "")
		return out, id
	}
	out.Scheduling = &res

	switch res.Outcome {
	case scheduling.OutcomeLinkSent:
		out.ReplyText = config.RenderReply(o.replies.SchedulingLink, map[string]string{
			"name":     displayName(customer.Name),
			"property": res.PropertyTitle,
			"link":     res.SchedulingLink,
		})
		return out, res.PropertyID
	case scheduling.OutcomePropertyNotFound:
		out.ReplyText = o.replies.PickProperty
		return out, 0
	case scheduling.OutcomeAlreadyBooked:
		out.ReplyText = o.render(o.replies.AlreadyBooked, customer.Name, res.PropertyTitle)
		return out, res.PropertyID
	default:
		out.ReplyText = o.render(o.replies.SchedulingFailure, customer.Name, res.PropertyTitle)
		return out, res.PropertyID
	}
}

func (o *Orchestrator) propertyDetails(ctx context.Context, p catalogdomain.Property, gen Generation) Outcome {
	out := Outcome{Branch: BranchPropertyDetails}
	out.ReplyText = o.sanitizer.Sanitize(gen.Reply, true)
	if out.ReplyText == "" {
		out.ReplyText = o.sanitizer.AckToken()
	}

	urls := o.catalog.MediaURLs(ctx, p)
	if len(urls) == 0 {
		out.SideEffects = append(out.SideEffects, SideEffect{
			Kind:       EffectSendText,
			Text:       propertyCaption(p),
			PropertyID: p.ID,
		})
		return out
	}
	out.SideEffects = append(out.SideEffects, SideEffect{
		Kind:       EffectSendMedia,
		PropertyID: p.ID,
		MediaURLs:  urls,
		Caption:    propertyCaption(p),
	})
	return out
}

// recordReply stores the agent turn and merges what the generation learned.
func (o *Orchestrator) recordReply(ctx context.Context, phoneNumber, reply string, gen Generation, engaged int) error {
	return o.locked(ctx, phoneNumber, func(s *conversation.Session, now time.Time) (leaddomain.Update, error) {
		s.Append(conversation.RoleAgent, reply, now)
		s.MergeCustomerInfo(gen.CustomerInfo)
		update := leaddomain.Update{
			Name:  nonEmpty(gen.CustomerInfo.Name),
			Email: nonEmpty(gen.CustomerInfo.Email),
		}
		if engaged > 0 {
			s.SetActiveProperty(engaged)
			update.PropertyID = &engaged
		}
		return update, nil
	})
}

// locked runs fn on the phone's session inside the per-phone critical
// section, saves the session and applies the returned lead update.
func (o *Orchestrator) locked(ctx context.Context, phoneNumber string, fn func(*conversation.Session, time.Time) (leaddomain.Update, error)) error {
	unlock, err := o.locker.Lock(ctx, phoneNumber)
	if err != nil {
		return fmt.Errorf("lock %s: %w", logger.MaskPhone(phoneNumber), err)
	}
	defer unlock()

	now := o.now().UTC()
	s, _, err := conversation.LoadOrNew(ctx, o.sessions, phoneNumber, now)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	update, err := fn(s, now)
	if err != nil {
		return err
	}
	if err := o.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if _, err := o.leads.Apply(ctx, leadservice.Mutation{
		PhoneNumber: phoneNumber,
		Source:      leaddomain.SourceWhatsApp,
		Update:      update,
		Session:     s,
	}); err != nil {
		return fmt.Errorf("apply lead: %w", err)
	}
	return nil
}

// deliver sends the reply and the side effects. Each failure is logged and
// affects only that action.
func (o *Orchestrator) deliver(ctx context.Context, phoneNumber string, out *Outcome) {
	log := o.log.WithPhone(phoneNumber)
	if out.ReplyText != "" {
		if err := o.messenger.SendMessage(ctx, phoneNumber, out.ReplyText); err != nil {
			log.CollaboratorFailure("whatsapp", "send reply", err)
		}
	}

	for i := range out.SideEffects {
		effect := &out.SideEffects[i]
		switch effect.Kind {
		case EffectSendText:
			if err := o.messenger.SendMessage(ctx, phoneNumber, effect.Text); err != nil {
				log.CollaboratorFailure("whatsapp", "send property text", err)
				continue
			}
			effect.Delivered = true
		case EffectSendMedia:
			sent := 0
			for j, url := range effect.MediaURLs {
				caption := ""
				if j == 0 {
					caption = effect.Caption
				}
				if err := o.messenger.SendMedia(ctx, phoneNumber, url, caption); err != nil {
					log.CollaboratorFailure("whatsapp", "send property media", err)
					continue
				}
				sent++
			}
			effect.Delivered = sent > 0
		}
	}
}

func (o *Orchestrator) render(tmpl, name, property string) string {
	return config.RenderReply(tmpl, map[string]string{
		"name":     displayName(name),
		"property": property,
		"phone":    o.fallbackPhone,
	})
}

func propertyCaption(p catalogdomain.Property) string {
	var b strings.Builder
	b.WriteString(p.Title)
	if loc := p.Location(); loc != "" {
		b.WriteString("\n📍 ")
		b.WriteString(loc)
	}
	if p.Price > 0 {
		fmt.Fprintf(&b, "\n💰 R$ %.2f", p.Price)
	}
	if p.Bedrooms > 0 {
		fmt.Fprintf(&b, "\n🛏 %d quartos", p.Bedrooms)
	}
	if p.Area > 0 {
		fmt.Fprintf(&b, "\n📐 %.0f m²", p.Area)
	}
	return b.String()
}

func displayName(name string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(name), " ")
	if first == "" {
		return "cliente"
	}
	return first
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
