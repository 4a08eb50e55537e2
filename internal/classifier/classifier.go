// Package classifier scores an utterance's likelihood of being an AI command.
package classifier

import "strings"

// Decision is the routing outcome for one utterance.
type Decision string

const (
	NotCommand        Decision = "not_command"
	NeedsConfirmation Decision = "needs_confirmation"
	Command           Decision = "command"
)

// Decision boundaries on the 0-100 confidence scale.
const (
	commandThreshold      = 60
	confirmationThreshold = 40
)

// Context carries the user-state summary consulted during scoring.
type Context struct {
	TriggerWord        string
	ActionVerbs        []string
	VerbsEnabled       bool
	HasHighlightedText bool
	IsLongDictation    bool
	RecentAICommands   int
}

// Classification is the scoring result consumed by the pipeline.
type Classification struct {
	Confidence      int
	Decision        Decision
	DetectedTrigger string
	DetectedVerb    string
}

var greetings = map[string]struct{}{
	"hey": {}, "hi": {}, "hello": {}, "yo": {},
	"ok": {}, "okay": {}, "um": {}, "uh": {},
}

var deictics = map[string]struct{}{
	"this": {}, "that": {}, "these": {}, "the": {}, "my": {},
}

var questionModals = map[string]struct{}{
	"can": {}, "could": {}, "will": {}, "would": {},
}

var intentPhrases = []string{"for me", "i want", "i need", "help me"}

// Classify scores one utterance. It is pure, deterministic, and stable
// under whitespace normalization.
func Classify(text string, ctx Context) Classification {
	norm := normalize(text)
	tokens := strings.Fields(norm)
	trigger := strings.ToLower(strings.TrimSpace(ctx.TriggerWord))

	if trig := matchTrigger(norm, tokens, trigger); trig != "" {
		return Classification{
			Confidence:      100,
			Decision:        Command,
			DetectedTrigger: trig,
		}
	}

	score := 0
	detectedVerb := ""

	if ctx.VerbsEnabled {
		verbScore, verb := scoreVerbs(tokens, ctx.ActionVerbs)
		score += verbScore
		detectedVerb = verb
	}

	if containsIntentPhrase(norm) {
		score += 15
	}
	if ctx.HasHighlightedText {
		score += 20
	}
	if ctx.IsLongDictation {
		score -= 25
	}
	if ctx.RecentAICommands > 0 {
		score += 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Classification{
		Confidence:   score,
		Decision:     decide(score),
		DetectedVerb: detectedVerb,
	}
}

// matchTrigger detects the unconditional command prefixes.
func matchTrigger(norm string, tokens []string, trigger string) string {
	if strings.HasPrefix(norm, "ai:") {
		return "ai:"
	}
	if strings.HasPrefix(norm, "command:") {
		return "command:"
	}
	if trigger == "" || len(tokens) == 0 {
		return ""
	}

	if tokens[0] == trigger {
		return trigger
	}
	if len(tokens) >= 2 && isGreeting(tokens[0]) && tokens[1] == trigger {
		return trigger
	}
	if len(tokens) >= 3 && isGreeting(tokens[0]) && isGreeting(tokens[1]) && tokens[2] == trigger {
		return trigger
	}
	return ""
}

// scoreVerbs applies the action-verb, question-pattern, and deictic signals.
func scoreVerbs(tokens []string, verbs []string) (int, string) {
	verbSet := make(map[string]struct{}, len(verbs))
	for _, verb := range verbs {
		verbSet[strings.ToLower(strings.TrimSpace(verb))] = struct{}{}
	}

	// Question pattern: modal + you/i with the verb inside the first 5 tokens.
	if len(tokens) >= 3 {
		_, modal := questionModals[tokens[0]]
		pronoun := tokens[1] == "you" || tokens[1] == "i"
		if modal && pronoun {
			limit := min(len(tokens), 5)
			for i := 2; i < limit; i++ {
				if _, ok := verbSet[tokens[i]]; !ok {
					continue
				}
				score := 40
				if i+1 < len(tokens) {
					if _, deictic := deictics[tokens[i+1]]; deictic {
						score += 15
					}
				}
				return score, tokens[i]
			}
		}
	}

	// Plain action verb inside the first 3 tokens.
	limit := min(len(tokens), 3)
	for i := 0; i < limit; i++ {
		if _, ok := verbSet[tokens[i]]; !ok {
			continue
		}
		score := 30
		if i+1 < len(tokens) {
			if _, deictic := deictics[tokens[i+1]]; deictic {
				score += 20
			}
		}
		return score, tokens[i]
	}

	return 0, ""
}

func isGreeting(token string) bool {
	_, ok := greetings[token]
	return ok
}

func containsIntentPhrase(norm string) bool {
	for _, phrase := range intentPhrases {
		if strings.Contains(norm, phrase) {
			return true
		}
	}
	return false
}

func decide(score int) Decision {
	switch {
	case score >= commandThreshold:
		return Command
	case score >= confirmationThreshold:
		return NeedsConfirmation
	default:
		return NotCommand
	}
}

// normalize lowercases and collapses whitespace so classification is stable
// under formatting differences.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
