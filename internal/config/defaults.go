package config

// DefaultActionVerbs is the verb list consulted by the command classifier
// when the user has not configured their own.
var DefaultActionVerbs = []string{
	"summarize", "explain", "analyze", "rewrite", "translate", "improve",
	"simplify", "elaborate", "fix", "check", "shorten", "expand", "clarify",
	"lengthen", "write", "update", "modify", "edit", "revise", "make",
}

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"
	clipboardPaste := "wl-paste --no-newline"
	typeCmd := "wtype -"

	return Config{
		AITriggerWord: "juno",
		AIModel:       "gpt-4",
		AITemperature: 0.7,
		AIRules:       nil,
		AITimeoutMS:   5000,

		StartupBehavior:  "minimized",
		KeyboardShortcut: "CommandOrControl+Shift+Space",

		ActionVerbs:        append([]string(nil), DefaultActionVerbs...),
		ActionVerbsEnabled: true,

		PauseBackgroundAudio: false,
		AudioFeedback:        true,

		WhisperModel:           "whisper-1",
		Language:               "en",
		TranscriptionTimeoutMS: 10000,

		CacheEnabled:    true,
		CacheSize:       500,
		CacheTTLMinutes: 60,

		PasteShortcut:     "CTRL,V",
		Clipboard:         CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		ClipboardPaste:    CommandConfig{Raw: clipboardPaste, Argv: mustParseArgv(clipboardPaste)},
		TypeCmd:           CommandConfig{Raw: typeCmd, Argv: mustParseArgv(typeCmd)},
		NotifyBackend:     "desktop",
		NotifyDesktopName: "juno",

		StrictConfig: true,
	}
}
