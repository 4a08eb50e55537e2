package aiproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeTrims(t *testing.T) {
	require.Equal(t, "hello", sanitizeResponse("  hello \n"))
}

func TestSanitizeStripsWholeResponseFence(t *testing.T) {
	require.Equal(t, "line one\nline two", sanitizeResponse("```\nline one\nline two\n```"))
	require.Equal(t, "x := 1", sanitizeResponse("```go\nx := 1\n```"))
}

func TestSanitizeKeepsInnerFences(t *testing.T) {
	input := "Here is the fix:\n```go\nx := 1\n```\nDone."
	require.Equal(t, input, sanitizeResponse(input))
}

func TestSanitizeKeepsUnbalancedOuterFence(t *testing.T) {
	// The leading fence opens an inner block that closes mid-response; the
	// trailing fence belongs to a second block, not a wrapper.
	input := "```go\ncode\n```\nprose\n```"
	require.Equal(t, input, sanitizeResponse(input))
}

func TestSanitizeCollapsesBlankRuns(t *testing.T) {
	require.Equal(t, "a\n\nb\n\nc", sanitizeResponse("a\n\n\n\nb\n\nc"))
}

func TestEchoGuardThreshold(t *testing.T) {
	selection := strings.Repeat("meaningful distinct wording present ", 5)
	require.Greater(t, len(selection), 100)

	require.True(t, echoesSelection(selection, selection))
	require.True(t, echoesSelection(strings.ToUpper(selection), selection), "matching is case-folded")
	require.False(t, echoesSelection("a completely different answer", selection))
}

func TestEchoGuardShortSelectionNeverTriggers(t *testing.T) {
	require.False(t, echoesSelection("echo echo echo", "echo echo echo"))
}

func TestEchoGuardIgnoresShortTokens(t *testing.T) {
	// Selection over 100 chars made only of tokens of length <= 3.
	selection := strings.Repeat("an it is to be or not o k ", 6)
	require.Greater(t, len(selection), 100)
	require.False(t, echoesSelection(selection, selection))
}

func TestEchoGuardTunableThreshold(t *testing.T) {
	original := EchoSimilarityThreshold
	t.Cleanup(func() { EchoSimilarityThreshold = original })

	selection := strings.Repeat("alpha beta gamma delta epsilon ", 5)
	response := "alpha beta gamma words words words"

	EchoSimilarityThreshold = 0.9
	require.False(t, echoesSelection(response, selection))

	EchoSimilarityThreshold = 0.5
	require.True(t, echoesSelection(response, selection))
}
