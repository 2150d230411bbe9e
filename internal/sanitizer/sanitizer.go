// Package sanitizer guards customer-facing replies against generated text
// that announces an action the system will not perform.
package sanitizer

import (
	"strings"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
)

// Sanitizer matches candidate replies against configured leak phrases.
type Sanitizer struct {
	phrases  []string
	ackToken string
}

// New builds a sanitizer from tuning. Blank phrases are ignored.
func New(t config.SanitizerTuning) *Sanitizer {
	phrases := make([]string, 0, len(t.LeakPhrases))
	for _, p := range t.LeakPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Sanitizer{phrases: phrases, ackToken: t.AckToken}
}

// AckToken is the reply used in place of a leaking candidate.
func (s *Sanitizer) AckToken() string {
	return s.ackToken
}

// Leaks reports the first configured phrase found in text, case-insensitively.
func (s *Sanitizer) Leaks(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range s.phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// Sanitize returns the text to send. When wasAboutToSendMedia is set and the
// candidate matches a leak phrase the whole reply becomes the ack token; the
// text is never edited in place.
func (s *Sanitizer) Sanitize(candidateText string, wasAboutToSendMedia bool) string {
	text := strings.TrimSpace(candidateText)
	if !wasAboutToSendMedia {
		return text
	}
	if _, leaked := s.Leaks(text); leaked {
		return s.ackToken
	}
	return text
}
