package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/juno.json", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/juno.json", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseAllCommands(t *testing.T) {
	for _, cmd := range []string{
		"run", "toggle", "stop", "cancel", "pause", "resume",
		"status", "devices", "doctor", "version",
	} {
		parsed, err := Parse([]string{cmd})
		require.NoError(t, err, cmd)
		require.Equal(t, Command(cmd), parsed.Command)
		require.False(t, parsed.ShowHelp)
	}
}

func TestParseRejectsUnknownCommand(t *testing.T) {
	_, err := Parse([]string{"transmogrify"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown command")
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	_, err := Parse([]string{"--verbose"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown flag")
}

func TestParseRejectsTrailingArguments(t *testing.T) {
	_, err := Parse([]string{"toggle", "now"})
	require.Error(t, err)
}

func TestParseConfigRequiresPath(t *testing.T) {
	_, err := Parse([]string{"--config"})
	require.Error(t, err)
}

func TestHelpTextMentionsCommands(t *testing.T) {
	text := HelpText("juno")
	for _, want := range []string{"run", "toggle", "cancel", "devices", "doctor", "--config"} {
		require.Contains(t, text, want)
	}
}
