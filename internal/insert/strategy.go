// Package insert places text at the foreground application's cursor,
// preferring native paste semantics with typed fallbacks.
package insert

import (
	"time"
	"unicode"
)

// StrategyKind names one insertion approach, in preference order.
type StrategyKind string

const (
	PrimaryPaste      StrategyKind = "primary_paste"
	SecondaryPaste    StrategyKind = "secondary_paste"
	KeySimulation     StrategyKind = "key_simulation"
	ClipboardFallback StrategyKind = "clipboard_fallback"
)

// Attempt records one try of one strategy.
type Attempt struct {
	Strategy  StrategyKind
	StartedAt time.Time
	Err       error
}

// Outcome is the terminal result of one insertion job.
type Outcome struct {
	Strategy StrategyKind
	Deferred bool
	Attempts []Attempt

	// PreviousClipboard holds the contents captured before the first
	// clipboard mutation, so a deferred insertion can be undone later.
	PreviousClipboard string
}

const (
	// keySimMaxCodePoints bounds direct keystroke synthesis.
	keySimMaxCodePoints = 500

	attemptsPerStrategy = 2
	attemptBackoff      = 300 * time.Millisecond
)

// keySimApplicable reports whether text is safe for keystroke synthesis:
// short enough and free of characters requiring composition.
func keySimApplicable(text string) bool {
	runes := []rune(text)
	if len(runes) == 0 || len(runes) > keySimMaxCodePoints {
		return false
	}
	for _, r := range runes {
		if needsComposition(r) {
			return false
		}
	}
	return true
}

// needsComposition flags runes a key synthesizer cannot emit as one press.
func needsComposition(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	if unicode.IsControl(r) {
		return true
	}
	if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) || unicode.Is(unicode.Mc, r) {
		return true
	}
	return r > 0xFFFF
}

// appsPreservingSelection lists apps known to keep a selection active under
// synthesized keypresses, requiring an explicit leading delete before
// keystroke replacement.
var appsPreservingSelection = map[string]struct{}{
	"kitty":          {},
	"alacritty":      {},
	"foot":           {},
	"org.wezfurlong.wezterm": {},
}

func appPreservesSelection(appName string) bool {
	_, ok := appsPreservingSelection[appName]
	return ok
}
