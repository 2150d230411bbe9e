package dialogue

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
)

var (
	propertyRefPattern = regexp.MustCompile(`(?i)(?:im[óo]vel|c[óo]digo|ref(?:er[êe]ncia)?|#|n[º°o]\.?)\s*(\d{1,6})`)
	emailPattern       = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	namePattern        = regexp.MustCompile(`(?i)(?:meu nome é|me chamo|sou o|sou a)\s+([A-Za-zÀ-ÿ]+(?:\s+[A-Za-zÀ-ÿ]+)?)`)
)

var (
	scheduleKeywords = []string{"agendar", "agendamento", "marcar visita", "marcar uma visita", "visitar", "visita"}
	detailKeywords   = []string{"foto", "fotos", "imagem", "imagens", "detalhe", "detalhes", "mais informações", "mais informacoes"}
)

// RulesGenerator is a keyword-driven Generator used when no language model
// is configured.
type RulesGenerator struct{}

func (RulesGenerator) Generate(_ context.Context, in GenerationContext) (Generation, error) {
	last := lastCustomerText(in)
	lower := strings.ToLower(last)

	var gen Generation
	gen.CustomerInfo.Email = emailPattern.FindString(last)
	if m := namePattern.FindStringSubmatch(last); m != nil {
		gen.CustomerInfo.Name = strings.TrimSpace(m[1])
	}

	propertyID := 0
	if m := propertyRefPattern.FindStringSubmatch(last); m != nil {
		propertyID, _ = strconv.Atoi(m[1])
	}
	if propertyID == 0 && in.ActiveProperty != nil {
		propertyID = in.ActiveProperty.ID
	}

	switch {
	case containsAny(lower, scheduleKeywords):
		gen.Scheduling = SchedulingSignal{WantsToSchedule: true, PropertyID: propertyID}
		gen.Reply = "Ótimo! Vou preparar o agendamento da sua visita."
	case containsAny(lower, detailKeywords) && propertyID > 0:
		gen.ShouldSendPropertyDetails = true
		gen.PropertyToSend = propertyID
		gen.Reply = "Aqui estão os detalhes do imóvel."
	case len(in.Catalog) > 0:
		var b strings.Builder
		b.WriteString("Olá! Temos estes imóveis disponíveis:\n")
		for i, p := range in.Catalog {
			if i == 5 {
				break
			}
			b.WriteString("• ")
			b.WriteString(p.Summary())
			b.WriteString("\n")
		}
		b.WriteString("Qual deles te interessa?")
		gen.Reply = b.String()
	default:
		gen.Reply = "Olá! Como posso ajudar na busca do seu imóvel?"
	}
	return gen, nil
}

func lastCustomerText(in GenerationContext) string {
	for i := len(in.History) - 1; i >= 0; i-- {
		if in.History[i].Role == conversation.RoleCustomer {
			return in.History[i].Text
		}
	}
	return ""
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
