package aiproc

import (
	"fmt"
	"strings"
)

// systemPreamble is the fixed role description sent on every request.
const systemPreamble = `You are a voice dictation assistant. The user spoke a command; produce only the text that should be inserted at their cursor. Do not add commentary, preamble, or explanations. Respond with plain text unless the command explicitly asks for code.`

// neverEchoInstruction closes every system prompt.
const neverEchoInstruction = `Never repeat the highlighted text back verbatim; transform it as the command asks.`

// noRepeatRetrySuffix is appended to the user prompt when the first
// response echoed too much of the selection.
const noRepeatRetrySuffix = `Do not repeat the highlighted text in your answer; respond only with the transformed result.`

// buildSystemPrompt assembles preamble, user rules, and the echo guard.
func buildSystemPrompt(rules []string) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	cleaned := make([]string, 0, len(rules))
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			cleaned = append(cleaned, rule)
		}
	}
	if len(cleaned) > 0 {
		b.WriteString("\n\nUser rules:\n")
		for _, rule := range cleaned {
			b.WriteString("- ")
			b.WriteString(rule)
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(neverEchoInstruction)
	return b.String()
}

// buildUserPrompt formats the command with the optional highlighted text block.
func buildUserPrompt(command string, selection string) string {
	if selection == "" {
		return command
	}
	return fmt.Sprintf("%s\n\nHIGHLIGHTED TEXT:\n\"\"\"%s\"\"\"", command, selection)
}
