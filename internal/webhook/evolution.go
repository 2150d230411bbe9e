package webhook

import (
	"encoding/json"
	"errors"
	"strings"
)

// Evolution API event names are delivered either dotted and lowercase or
// upper snake case depending on the instance settings.
const evolutionMessagesUpsert = "messages.upsert"

// ErrIgnoredEvent marks a well-formed delivery that carries nothing to process.
var ErrIgnoredEvent = errors.New("event ignored")

// InboundMessage is a customer text normalized from the messaging transport.
type InboundMessage struct {
	ID        string
	RawSender string
	PushName  string
	Text      string
}

type evolutionEnvelope struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type evolutionMessage struct {
	Key struct {
		RemoteJID    string `json:"remoteJid"`
		RemoteJIDAlt string `json:"remoteJidAlt"`
		FromMe       bool   `json:"fromMe"`
		ID           string `json:"id"`
	} `json:"key"`
	PushName string `json:"pushName"`
	Message  struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage *struct {
			Caption string `json:"caption"`
		} `json:"imageMessage"`
		ButtonsResponseMessage *struct {
			SelectedDisplayText string `json:"selectedDisplayText"`
		} `json:"buttonsResponseMessage"`
	} `json:"message"`
}

// ParseEvolutionMessages extracts the customer texts from an Evolution API
// webhook, in delivery order. data is an object for single messages and an
// array for batched upserts. Messages that are not inbound one-to-one texts
// are skipped; when none remain the result is ErrIgnoredEvent. Undecodable
// bodies return a decode error.
func ParseEvolutionMessages(body []byte) ([]InboundMessage, error) {
	var env evolutionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if normalizeEventName(env.Event) != evolutionMessagesUpsert {
		return nil, ErrIgnoredEvent
	}

	var batch []evolutionMessage
	raw := strings.TrimSpace(string(env.Data))
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			return nil, err
		}
	} else {
		var msg evolutionMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, err
		}
		batch = append(batch, msg)
	}

	out := make([]InboundMessage, 0, len(batch))
	for _, msg := range batch {
		if in, ok := inboundMessage(msg); ok {
			out = append(out, in)
		}
	}
	if len(out) == 0 {
		return nil, ErrIgnoredEvent
	}
	return out, nil
}

func inboundMessage(msg evolutionMessage) (InboundMessage, bool) {
	jid := msg.Key.RemoteJID
	if msg.Key.FromMe || jid == "" || strings.HasSuffix(jid, "@g.us") || strings.HasSuffix(jid, "@broadcast") {
		return InboundMessage{}, false
	}
	// LID addressed chats carry the phone in remoteJidAlt.
	if strings.HasSuffix(jid, "@lid") && msg.Key.RemoteJIDAlt != "" {
		jid = msg.Key.RemoteJIDAlt
	}
	sender, _, _ := strings.Cut(jid, "@")
	sender, _, _ = strings.Cut(sender, ":")

	text := messageText(msg)
	if text == "" {
		return InboundMessage{}, false
	}
	return InboundMessage{
		ID:        msg.Key.ID,
		RawSender: sender,
		PushName:  strings.TrimSpace(msg.PushName),
		Text:      text,
	}, true
}

func messageText(msg evolutionMessage) string {
	m := msg.Message
	switch {
	case strings.TrimSpace(m.Conversation) != "":
		return strings.TrimSpace(m.Conversation)
	case m.ExtendedTextMessage != nil && strings.TrimSpace(m.ExtendedTextMessage.Text) != "":
		return strings.TrimSpace(m.ExtendedTextMessage.Text)
	case m.ButtonsResponseMessage != nil && strings.TrimSpace(m.ButtonsResponseMessage.SelectedDisplayText) != "":
		return strings.TrimSpace(m.ButtonsResponseMessage.SelectedDisplayText)
	case m.ImageMessage != nil:
		return strings.TrimSpace(m.ImageMessage.Caption)
	}
	return ""
}

func normalizeEventName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", ".")
}
