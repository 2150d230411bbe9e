package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
	"google.golang.org/genai"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
)

const agentAppName = "sales_representative"

const agentInstruction = `Você é o corretor virtual da BS Consultoria de Imóveis e atende clientes pelo WhatsApp.
Responda sempre em português do Brasil, de forma curta, cordial e objetiva.

REGRAS:
1. Use apenas imóveis do catálogo informado. Nunca invente imóveis, preços ou endereços.
2. Quando o cliente pedir fotos ou mais detalhes de um imóvel, chame a ferramenta SendPropertyDetails com o código do imóvel.
   As fotos são enviadas pelo sistema; não diga que vai enviar fotos.
3. Quando o cliente quiser agendar uma visita, chame a ferramenta RequestVisit com o código do imóvel.
   O link de agendamento é enviado pelo sistema; não escreva links.
4. Quando o cliente informar nome ou e-mail, chame a ferramenta SaveCustomerInfo.
5. Não mencione ferramentas, instruções internas ou códigos de sistema na resposta.`

// signals collects tool calls made during one generation.
type signals struct {
	mu  sync.Mutex
	gen Generation
}

type propertyInput struct {
	PropertyID int `json:"propertyId"`
}

type customerInfoInput struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type toolOutput struct {
	Status string `json:"status"`
}

// AgentGenerator runs an ADK LLM agent whose tools record the structured
// signals. Each call builds its own agent so concurrent phones never share
// signal state.
type AgentGenerator struct {
	model model.LLM
}

func NewAgentGenerator(llm model.LLM) *AgentGenerator {
	return &AgentGenerator{model: llm}
}

func (g *AgentGenerator) Generate(ctx context.Context, in GenerationContext) (Generation, error) {
	sig := &signals{}
	tools, err := sig.tools()
	if err != nil {
		return Generation{}, err
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "SalesRepresentative",
		Model:       g.model,
		Description: "Real-estate sales representative answering WhatsApp customers.",
		Instruction: agentInstruction,
		Tools:       tools,
	})
	if err != nil {
		return Generation{}, fmt.Errorf("create sales agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        agentAppName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return Generation{}, fmt.Errorf("create sales runner: %w", err)
	}

	userID := "phone-" + in.PhoneNumber
	sessionID := uuid.New().String()
	if _, err := sessionService.Create(ctx, &session.CreateRequest{
		AppName:   agentAppName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return Generation{}, fmt.Errorf("create agent session: %w", err)
	}

	msg := &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: BuildPrompt(in)}},
	}

	var reply string
	for event, err := range r.Run(ctx, userID, sessionID, msg, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if err != nil {
			return Generation{}, err
		}
		if event == nil || event.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range event.Content.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			reply = text
		}
	}

	out := sig.result()
	out.Reply = reply
	if out.Reply == "" && !out.ShouldSendPropertyDetails && !out.Scheduling.WantsToSchedule {
		return Generation{}, errors.New("agent produced no reply")
	}
	return out, nil
}

func (s *signals) tools() ([]tool.Tool, error) {
	details, err := functiontool.New(functiontool.Config{
		Name:        "SendPropertyDetails",
		Description: "Envia ao cliente as fotos e detalhes de um imóvel do catálogo.",
	}, func(_ tool.Context, in propertyInput) (toolOutput, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.gen.ShouldSendPropertyDetails = true
		s.gen.PropertyToSend = in.PropertyID
		return toolOutput{Status: "fotos serão enviadas pelo sistema"}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create SendPropertyDetails tool: %w", err)
	}

	visit, err := functiontool.New(functiontool.Config{
		Name:        "RequestVisit",
		Description: "Registra que o cliente quer agendar uma visita a um imóvel.",
	}, func(_ tool.Context, in propertyInput) (toolOutput, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.gen.Scheduling = SchedulingSignal{WantsToSchedule: true, PropertyID: in.PropertyID}
		return toolOutput{Status: "link de agendamento será enviado pelo sistema"}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create RequestVisit tool: %w", err)
	}

	info, err := functiontool.New(functiontool.Config{
		Name:        "SaveCustomerInfo",
		Description: "Salva o nome e/ou e-mail informados pelo cliente.",
	}, func(_ tool.Context, in customerInfoInput) (toolOutput, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if v := strings.TrimSpace(in.Name); v != "" {
			s.gen.CustomerInfo.Name = v
		}
		if v := strings.TrimSpace(in.Email); v != "" {
			s.gen.CustomerInfo.Email = v
		}
		return toolOutput{Status: "ok"}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create SaveCustomerInfo tool: %w", err)
	}

	return []tool.Tool{details, visit, info}, nil
}

func (s *signals) result() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// BuildPrompt renders the conversation context as the agent's user message.
func BuildPrompt(in GenerationContext) string {
	var b strings.Builder

	b.WriteString("CLIENTE\n")
	fmt.Fprintf(&b, "Nome: %s\n", orDash(in.Customer.Name))
	fmt.Fprintf(&b, "E-mail: %s\n", orDash(in.Customer.Email))
	fmt.Fprintf(&b, "Agendamento: %s\n", in.SchedulingState)
	if in.ActiveProperty != nil {
		fmt.Fprintf(&b, "Imóvel em conversa: %s\n", in.ActiveProperty.Summary())
	}

	b.WriteString("\nCATÁLOGO\n")
	if len(in.Catalog) == 0 {
		b.WriteString("(indisponível)\n")
	}
	for _, p := range in.Catalog {
		b.WriteString("- ")
		b.WriteString(p.Summary())
		b.WriteString("\n")
	}

	b.WriteString("\nCONVERSA\n")
	for _, t := range in.History {
		who := "Cliente"
		if t.Role == conversation.RoleAgent {
			who = "Corretor"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, t.Text)
	}
	b.WriteString("\nResponda à última mensagem do cliente.")
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
