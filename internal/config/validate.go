package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)
	copied := cfg
	return validateInto(&copied, warnings)
}

// validateInto checks invariants, normalizing trivially fixable values in place.
func validateInto(cfg *Config, warnings []Warning) ([]Warning, error) {
	if strings.TrimSpace(cfg.AITriggerWord) == "" {
		return nil, fmt.Errorf("ai_trigger_word must not be empty")
	}
	if strings.TrimSpace(cfg.AIModel) == "" {
		return nil, fmt.Errorf("ai_model must not be empty")
	}
	if cfg.AITemperature < 0 || cfg.AITemperature > 2 {
		return nil, fmt.Errorf("ai_temperature must be within [0.0, 2.0], got %v", cfg.AITemperature)
	}
	if cfg.AITimeoutMS <= 0 {
		return nil, fmt.Errorf("ai_timeout_ms must be > 0")
	}

	behavior := strings.ToLower(strings.TrimSpace(cfg.StartupBehavior))
	if behavior != "minimized" && behavior != "normal" {
		return nil, fmt.Errorf("startup_behavior must be one of: minimized, normal")
	}
	cfg.StartupBehavior = behavior

	if strings.TrimSpace(cfg.KeyboardShortcut) == "" {
		return nil, fmt.Errorf("keyboard_shortcut must not be empty")
	}
	if strings.TrimSpace(cfg.WhisperModel) == "" {
		return nil, fmt.Errorf("whisper_model must not be empty")
	}
	if strings.TrimSpace(cfg.Language) == "" {
		return nil, fmt.Errorf("language must not be empty")
	}
	if cfg.TranscriptionTimeoutMS <= 0 {
		return nil, fmt.Errorf("transcription_timeout_ms must be > 0")
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("cache_size must be > 0")
	}
	if cfg.CacheTTLMinutes <= 0 {
		return nil, fmt.Errorf("cache_ttl_minutes must be > 0")
	}

	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}
	if len(cfg.ClipboardPaste.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_paste_cmd must not be empty")
	}
	if len(cfg.TypeCmd.Argv) == 0 {
		return nil, fmt.Errorf("type_cmd must not be empty")
	}
	if strings.TrimSpace(cfg.PasteShortcut) == "" {
		return nil, fmt.Errorf("paste_shortcut must not be empty")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.NotifyBackend))
	if backend != "desktop" && backend != "hypr" {
		return nil, fmt.Errorf("notify_backend must be one of: desktop, hypr")
	}
	cfg.NotifyBackend = backend
	if backend == "desktop" && strings.TrimSpace(cfg.NotifyDesktopName) == "" {
		return nil, fmt.Errorf("notify_desktop_name must not be empty when notify_backend=desktop")
	}

	if cfg.ActionVerbsEnabled && len(cfg.ActionVerbs) == 0 {
		warnings = append(warnings, Warning{
			Key:     "action_verbs",
			Message: "action_verbs_enabled is true but action_verbs is empty; verb detection will never fire",
		})
	}

	return warnings, nil
}
