package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvolutionMessages(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		text   string
		sender string
		err    error
	}{
		{
			name:   "conversation",
			body:   `{"event":"messages.upsert","data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net","fromMe":false,"id":"ABC"},"pushName":"Ana","message":{"conversation":"Oi"}}}`,
			text:   "Oi",
			sender: "5511987654321",
		},
		{
			name:   "extended text and upper snake event",
			body:   `{"event":"MESSAGES_UPSERT","data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net","id":"D"},"message":{"extendedTextMessage":{"text":" Quero visitar "}}}}`,
			text:   "Quero visitar",
			sender: "5511987654321",
		},
		{
			name:   "batched data",
			body:   `{"event":"messages.upsert","data":[{"key":{"remoteJid":"5511987654321:12@s.whatsapp.net","id":"E"},"message":{"conversation":"Olá"}}]}`,
			text:   "Olá",
			sender: "5511987654321",
		},
		{
			name:   "lid chat uses alternate jid",
			body:   `{"event":"messages.upsert","data":{"key":{"remoteJid":"1234@lid","remoteJidAlt":"5511987654321@s.whatsapp.net","id":"F"},"message":{"conversation":"Oi"}}}`,
			text:   "Oi",
			sender: "5511987654321",
		},
		{name: "own message", body: `{"event":"messages.upsert","data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net","fromMe":true},"message":{"conversation":"Oi"}}}`, err: ErrIgnoredEvent},
		{name: "group", body: `{"event":"messages.upsert","data":{"key":{"remoteJid":"123-456@g.us"},"message":{"conversation":"Oi"}}}`, err: ErrIgnoredEvent},
		{name: "status update", body: `{"event":"messages.update","data":{}}`, err: ErrIgnoredEvent},
		{name: "audio only", body: `{"event":"messages.upsert","data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net"},"message":{"audioMessage":{}}}}`, err: ErrIgnoredEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := ParseEvolutionMessages([]byte(tt.body))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			msg := msgs[0]
			assert.Equal(t, tt.text, msg.Text)
			assert.Equal(t, tt.sender, msg.RawSender)
		})
	}
}

func TestParseEvolutionMessagesKeepsWholeBatch(t *testing.T) {
	body := `{"event":"messages.upsert","data":[
		{"key":{"remoteJid":"5511987654321@s.whatsapp.net","id":"A1"},"message":{"conversation":"Oi"}},
		{"key":{"remoteJid":"5511987654321@s.whatsapp.net","fromMe":true,"id":"A2"},"message":{"conversation":"resposta"}},
		{"key":{"remoteJid":"5521912345678@s.whatsapp.net","id":"A3"},"message":{"conversation":"Bom dia"}},
		{"key":{"remoteJid":"5511987654321@s.whatsapp.net","id":"A4"},"message":{"conversation":"Tem fotos?"}}
	]}`
	msgs, err := ParseEvolutionMessages([]byte(body))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"A1", "A3", "A4"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.Equal(t, "5521912345678", msgs[1].RawSender)

	_, err = ParseEvolutionMessages([]byte(`{"event":"messages.upsert","data":[]}`))
	assert.ErrorIs(t, err, ErrIgnoredEvent)
}

func TestParseEvolutionMessagesMalformed(t *testing.T) {
	_, err := ParseEvolutionMessages([]byte(`{`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIgnoredEvent)
}
