package service

import "strings"

// FarewellDetector decides whether an agent line closes the call.
type FarewellDetector interface {
	IsFarewell(message string) bool
}

type phraseFarewellDetector struct {
	phrases []string
}

var defaultFarewellPhrases = []string{"goodbye", "have a nice day"}

// NewPhraseFarewellDetector matches any of the phrases case-insensitively. With
// no phrases it uses the stock closing lines.
func NewPhraseFarewellDetector(phrases ...string) FarewellDetector {
	if len(phrases) == 0 {
		phrases = defaultFarewellPhrases
	}
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &phraseFarewellDetector{phrases: lowered}
}

func (d *phraseFarewellDetector) IsFarewell(message string) bool {
	message = strings.ToLower(message)
	for _, p := range d.phrases {
		if strings.Contains(message, p) {
			return true
		}
	}
	return false
}
