package config

import (
	"encoding/json"
	"fmt"
)

// fileSchema is the on-disk JSON shape of config.json.
type fileSchema struct {
	OpenAIAPIKey           string   `json:"openai_api_key,omitempty"`
	AITriggerWord          string   `json:"ai_trigger_word"`
	AIModel                string   `json:"ai_model"`
	AITemperature          float64  `json:"ai_temperature"`
	AIRules                []string `json:"ai_rules,omitempty"`
	AITimeoutMS            int      `json:"ai_timeout_ms"`
	StartupBehavior        string   `json:"startup_behavior"`
	DefaultMicrophone      string   `json:"default_microphone,omitempty"`
	ActionVerbs            []string `json:"action_verbs"`
	ActionVerbsEnabled     bool     `json:"action_verbs_enabled"`
	KeyboardShortcut       string   `json:"keyboard_shortcut"`
	PauseBackgroundAudio   bool     `json:"pause_background_audio"`
	AudioFeedback          bool     `json:"audio_feedback"`
	WhisperModel           string   `json:"whisper_model"`
	Language               string   `json:"language"`
	TranscriptionTimeoutMS int      `json:"transcription_timeout_ms"`
	CacheEnabled           bool     `json:"cache_enabled"`
	CacheSize              int      `json:"cache_size"`
	CacheTTLMinutes        int      `json:"cache_ttl_minutes"`
	PasteShortcut          string   `json:"paste_shortcut"`
	ClipboardCmd           string   `json:"clipboard_cmd"`
	ClipboardPasteCmd      string   `json:"clipboard_paste_cmd"`
	TypeCmd                string   `json:"type_cmd"`
	NotifyBackend          string   `json:"notify_backend"`
	NotifyDesktopName      string   `json:"notify_desktop_name"`
	StrictConfig           bool     `json:"strict_config"`
}

// Marshal renders a config as indented on-disk JSON.
func Marshal(cfg Config) ([]byte, error) {
	out := fileSchema{
		OpenAIAPIKey:           cfg.OpenAIAPIKey,
		AITriggerWord:          cfg.AITriggerWord,
		AIModel:                cfg.AIModel,
		AITemperature:          cfg.AITemperature,
		AIRules:                cfg.AIRules,
		AITimeoutMS:            cfg.AITimeoutMS,
		StartupBehavior:        cfg.StartupBehavior,
		DefaultMicrophone:      cfg.DefaultMicrophone,
		ActionVerbs:            cfg.ActionVerbs,
		ActionVerbsEnabled:     cfg.ActionVerbsEnabled,
		KeyboardShortcut:       cfg.KeyboardShortcut,
		PauseBackgroundAudio:   cfg.PauseBackgroundAudio,
		AudioFeedback:          cfg.AudioFeedback,
		WhisperModel:           cfg.WhisperModel,
		Language:               cfg.Language,
		TranscriptionTimeoutMS: cfg.TranscriptionTimeoutMS,
		CacheEnabled:           cfg.CacheEnabled,
		CacheSize:              cfg.CacheSize,
		CacheTTLMinutes:        cfg.CacheTTLMinutes,
		PasteShortcut:          cfg.PasteShortcut,
		ClipboardCmd:           cfg.Clipboard.Raw,
		ClipboardPasteCmd:      cfg.ClipboardPaste.Raw,
		TypeCmd:                cfg.TypeCmd.Raw,
		NotifyBackend:          cfg.NotifyBackend,
		NotifyDesktopName:      cfg.NotifyDesktopName,
		StrictConfig:           cfg.StrictConfig,
	}

	content, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append(content, '\n'), nil
}
