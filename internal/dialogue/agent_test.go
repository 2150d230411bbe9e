package dialogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/conversation"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/ai/moonshot"
)

type chatRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

func TestAgentGeneratorRecordsToolSignals(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		names := make([]string, 0, len(req.Tools))
		for _, tl := range req.Tools {
			names = append(names, tl.Function.Name)
		}
		assert.ElementsMatch(t, []string{"SendPropertyDetails", "RequestVisit", "SaveCustomerInfo"}, names)

		for _, m := range req.Messages {
			if m.Role == "tool" {
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Perfeito, Ana! Já vou providenciar."}}]}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"RequestVisit","arguments":"{\"propertyId\":125}"}},
			{"id":"call_2","type":"function","function":{"name":"SaveCustomerInfo","arguments":"{\"name\":\"Ana Souza\"}"}}]}}]}`))
	}))
	defer srv.Close()

	gen := NewAgentGenerator(moonshot.NewModel(moonshot.Config{APIKey: "key", BaseURL: srv.URL, Timeout: 5 * time.Second}))
	out, err := gen.Generate(context.Background(), GenerationContext{
		PhoneNumber: customer,
		History: []conversation.Turn{
			{Role: conversation.RoleCustomer, Text: "Sou a Ana Souza, quero agendar visita no imóvel 125"},
		},
		Catalog: []catalogdomain.Property{{ID: 125, Title: "Casa Jardim Paulista"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Perfeito, Ana! Já vou providenciar.", out.Reply)
	assert.True(t, out.Scheduling.WantsToSchedule)
	assert.Equal(t, 125, out.Scheduling.PropertyID)
	assert.Equal(t, "Ana Souza", out.CustomerInfo.Name)
	assert.False(t, out.ShouldSendPropertyDetails)
	assert.EqualValues(t, 2, calls.Load())
}

func TestAgentGeneratorPropagatesModelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gen := NewAgentGenerator(moonshot.NewModel(moonshot.Config{APIKey: "key", BaseURL: srv.URL}))
	_, err := gen.Generate(context.Background(), GenerationContext{
		PhoneNumber: customer,
		History:     []conversation.Turn{{Role: conversation.RoleCustomer, Text: "oi"}},
	})
	require.Error(t, err)
}

func TestBuildPromptIncludesContext(t *testing.T) {
	active := catalogdomain.Property{ID: 125, Title: "Casa Jardim Paulista"}
	prompt := BuildPrompt(GenerationContext{
		Customer:        conversation.CustomerInfo{Name: "Ana"},
		ActiveProperty:  &active,
		Catalog:         []catalogdomain.Property{active, {ID: 7, Title: "Apartamento Centro"}},
		SchedulingState: conversation.StateLinkSent,
		History: []conversation.Turn{
			{Role: conversation.RoleCustomer, Text: "Oi"},
			{Role: conversation.RoleAgent, Text: "Olá!"},
		},
	})

	assert.Contains(t, prompt, "Nome: Ana")
	assert.Contains(t, prompt, "E-mail: -")
	assert.Contains(t, prompt, "Imóvel em conversa: #125 Casa Jardim Paulista")
	assert.Contains(t, prompt, "#7 Apartamento Centro")
	assert.Contains(t, prompt, "Agendamento: link-sent")
	assert.Contains(t, prompt, "Cliente: Oi\nCorretor: Olá!")
}
