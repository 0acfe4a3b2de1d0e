package classifier

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"fbo-callrelay-be/pkg/aviation"
)

// RuleClassifier is a keyword engine that follows the classifier contract
// without calling out to a model. It backs the service when no LLM is configured.
type RuleClassifier struct{}

var _ Classifier = RuleClassifier{}

func NewRuleClassifier() RuleClassifier {
	return RuleClassifier{}
}

type serviceKeywords struct {
	service ServiceType
	pattern *regexp.Regexp
}

var (
	servicePatterns = []serviceKeywords{
		{ServiceReservation, words("landing", "land", "arrival", "arriving", "arrive", "parking", "reservation", "eta", "touchdown")},
		{ServiceRefueling, words("fuel", "refuel", "refueling", "fueling", "jet a")},
		{ServiceTransport, words("car", "cars", "rental", "limo", "limousine", "vehicle", "transport", "transportation", "ride")},
		{ServiceCatering, words("food", "catering", "sandwich", "sandwiches", "coffee", "meal", "meals", "breakfast", "lunch", "dinner", "snacks")},
		{ServiceWine, words("wine", "wines", "alcohol", "drink", "drinks", "champagne")},
	}

	pilotEmergency = words("engine failure", "emergency", "mayday", "fire", "smoke", "fuel leak", "medical", "bird strike", "landing gear")
	agentEmergency = words("escalating", "transferring to duty manager", "duty manager", "emergency")

	confirmation  = words("confirmed", "confirm", "arranged", "booked", "placed", "marked", "scheduled", "reserved", "all set")
	upsell        = words("last time", "same again", "the same", "previously", "past order", "as usual", "your usual")
	declinePhrase = words("no thanks", "no thank you", "i don't want", "i do not want", "don't need", "do not need", "no need", "cancel", "not needed")
	leadingNo     = regexp.MustCompile(`(?i)^\s*(?:no|nope|nah)\b`)
	affirmation   = regexp.MustCompile(`(?i)^\s*(?:yes|yeah|yep|sure|please|sounds good|absolutely|of course)\b`)
	landingTime   = regexp.MustCompile(`(?i)\b(?:\d{1,2}(?::\d{2})?\s?(?:am|pm)|(?:in|after)\s+\d+\s+hours?)\b`)

	clauseBreak   = regexp.MustCompile(`[,;]`)
	interrogative = regexp.MustCompile(`(?i)^\s*(?:(?:and|or|but|so)\s+)?(?:would|do|does|can|could|shall|should|will|may|is|are|what|which|when|how|anything|any)\b`)
	questionLead  = regexp.MustCompile(`(?i)\b(?:would you|do you|can i|could i|shall i|should i|may i|is there|anything else)\b`)
)

func words(list ...string) *regexp.Regexp {
	quoted := make([]string, len(list))
	for i, w := range list {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func (RuleClassifier) Classify(ctx context.Context, role Role, message string, contextLines []ContextLine) ([]Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	message = strings.ReplaceAll(strings.TrimSpace(message), "’", "'")
	if message == "" {
		return []Intent{}, nil
	}

	emergency := pilotEmergency
	if role == RoleAgent {
		emergency = agentEmergency
	}
	if emergency.MatchString(message) {
		return []Intent{{Type: ServiceUrgent, Action: ActionFinalize, Details: summarize(message)}}, nil
	}

	if role == RoleAgent {
		return classifyAgent(message), nil
	}
	return classifyPilot(message, trimContext(contextLines)), nil
}

func classifyPilot(message string, contextLines []ContextLine) []Intent {
	mentioned := mentions(message, true)

	if leadingNo.MatchString(message) || declinePhrase.MatchString(message) {
		if len(mentioned) == 0 {
			mentioned = lastAgentMentions(contextLines)
		}
		return intentsFor(mentioned, ActionCancel, "")
	}

	if len(mentioned) == 0 && affirmation.MatchString(message) {
		mentioned = lastAgentMentions(contextLines)
	}
	return intentsFor(mentioned, ActionSearch, "")
}

func classifyAgent(message string) []Intent {
	suppressed := make(map[ServiceType]bool)
	seen := make(map[ServiceType]bool)
	out := []Intent{}

	for _, s := range splitSentences(message) {
		mentioned := mentions(s.text, false)
		if upsell.MatchString(s.text) {
			for _, m := range mentioned {
				suppressed[m] = true
			}
			continue
		}
		statements := []string{s.text}
		if s.question {
			statements = statementClauses(s.text)
		}
		for _, st := range statements {
			if !confirmation.MatchString(st) {
				continue
			}
			for _, m := range mentions(st, false) {
				if seen[m] {
					continue
				}
				seen[m] = true
				out = append(out, Intent{Type: m, Action: ActionFinalize, Details: summarize(st)})
			}
		}
	}

	filtered := out[:0]
	for _, in := range out {
		if !suppressed[in.Type] {
			filtered = append(filtered, in)
		}
	}
	return filtered
}

// statementClauses returns the parts of a question sentence that are plain
// statements, e.g. "I have arranged your fuel" in "I have arranged your fuel,
// would you like catering?". The question itself never counts.
func statementClauses(text string) []string {
	clauses := clauseBreak.Split(text, -1)
	var out []string
	for i, c := range clauses {
		if interrogative.MatchString(c) {
			continue
		}
		if loc := questionLead.FindStringIndex(c); loc != nil {
			c = c[:loc[0]]
		} else if i == len(clauses)-1 {
			continue
		}
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// mentions lists the services named in text, ordered by first appearance.
func mentions(text string, pilot bool) []ServiceType {
	type hit struct {
		service ServiceType
		pos     int
	}
	var hits []hit
	for _, sp := range servicePatterns {
		if loc := sp.pattern.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{sp.service, loc[0]})
		}
	}
	if pilot {
		reservationFound := false
		for _, h := range hits {
			if h.service == ServiceReservation {
				reservationFound = true
			}
		}
		if !reservationFound {
			if loc := landingTime.FindStringIndex(text); loc != nil {
				hits = append(hits, hit{ServiceReservation, loc[0]})
			} else if _, ok := aviation.ExtractTailNumber(text); ok {
				hits = append(hits, hit{ServiceReservation, strings.Index(text, "N")})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]ServiceType, len(hits))
	for i, h := range hits {
		out[i] = h.service
	}
	return out
}

func lastAgentMentions(contextLines []ContextLine) []ServiceType {
	for i := len(contextLines) - 1; i >= 0; i-- {
		if contextLines[i].Role == RoleAgent {
			return mentions(contextLines[i].Message, false)
		}
	}
	return nil
}

func intentsFor(services []ServiceType, action Action, details string) []Intent {
	out := make([]Intent, 0, len(services))
	for _, s := range services {
		out = append(out, Intent{Type: s, Action: action, Details: details})
	}
	return out
}

type sentence struct {
	text     string
	question bool
}

func splitSentences(text string) []sentence {
	var out []sentence
	var sb strings.Builder
	flush := func(question bool) {
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, sentence{text: s, question: question})
		}
		sb.Reset()
	}
	for _, r := range text {
		switch r {
		case '.', '!':
			flush(false)
		case '?':
			flush(true)
		default:
			sb.WriteRune(r)
		}
	}
	flush(false)
	return out
}

// summarize caps details at limit runes.
func summarize(text string) string {
	const limit = 120
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
