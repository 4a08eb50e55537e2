package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrCorrupt marks content that cannot be read as a JSON object at all.
var ErrCorrupt = errors.New("config file is not valid JSON")

// Parse decodes strict-JSON configuration content over a base config.
//
// Unknown keys are errors when strict_config is true (the default) and
// warnings otherwise. Type mismatches on known keys are always errors.
func Parse(content []byte, base Config) (Config, []Warning, error) {
	cfg := base
	if len(content) == 0 {
		return cfg, nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return Config{}, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// strict_config governs how the rest of this very file is read.
	if v, ok := raw["strict_config"]; ok {
		if err := json.Unmarshal(v, &cfg.StrictConfig); err != nil {
			return Config{}, nil, keyError("strict_config", err)
		}
	}

	warnings := make([]Warning, 0)
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		var err error
		switch key {
		case "strict_config":
			// already applied
		case "openai_api_key":
			err = json.Unmarshal(value, &cfg.OpenAIAPIKey)
		case "ai_trigger_word":
			err = json.Unmarshal(value, &cfg.AITriggerWord)
		case "ai_model":
			err = json.Unmarshal(value, &cfg.AIModel)
		case "ai_temperature":
			err = json.Unmarshal(value, &cfg.AITemperature)
		case "ai_rules":
			err = json.Unmarshal(value, &cfg.AIRules)
		case "ai_timeout_ms":
			err = json.Unmarshal(value, &cfg.AITimeoutMS)
		case "startup_behavior":
			err = json.Unmarshal(value, &cfg.StartupBehavior)
		case "default_microphone":
			err = json.Unmarshal(value, &cfg.DefaultMicrophone)
		case "action_verbs":
			err = json.Unmarshal(value, &cfg.ActionVerbs)
		case "action_verbs_enabled":
			err = json.Unmarshal(value, &cfg.ActionVerbsEnabled)
		case "keyboard_shortcut":
			err = json.Unmarshal(value, &cfg.KeyboardShortcut)
		case "pause_background_audio":
			err = json.Unmarshal(value, &cfg.PauseBackgroundAudio)
		case "audio_feedback":
			err = json.Unmarshal(value, &cfg.AudioFeedback)
		case "whisper_model":
			err = json.Unmarshal(value, &cfg.WhisperModel)
		case "language":
			err = json.Unmarshal(value, &cfg.Language)
		case "transcription_timeout_ms":
			err = json.Unmarshal(value, &cfg.TranscriptionTimeoutMS)
		case "cache_enabled":
			err = json.Unmarshal(value, &cfg.CacheEnabled)
		case "cache_size":
			err = json.Unmarshal(value, &cfg.CacheSize)
		case "cache_ttl_minutes":
			err = json.Unmarshal(value, &cfg.CacheTTLMinutes)
		case "paste_shortcut":
			err = json.Unmarshal(value, &cfg.PasteShortcut)
		case "clipboard_cmd":
			err = decodeCommand(value, &cfg.Clipboard)
		case "clipboard_paste_cmd":
			err = decodeCommand(value, &cfg.ClipboardPaste)
		case "type_cmd":
			err = decodeCommand(value, &cfg.TypeCmd)
		case "notify_backend":
			err = json.Unmarshal(value, &cfg.NotifyBackend)
		case "notify_desktop_name":
			err = json.Unmarshal(value, &cfg.NotifyDesktopName)
		default:
			if cfg.StrictConfig {
				return Config{}, nil, fmt.Errorf("unknown config key %q", key)
			}
			warnings = append(warnings, Warning{Key: key, Message: fmt.Sprintf("unknown config key %q ignored", key)})
			continue
		}
		if err != nil {
			return Config{}, nil, keyError(key, err)
		}
	}

	return cfg, warnings, nil
}

// decodeCommand parses a raw command string into its argv form.
func decodeCommand(value json.RawMessage, out *CommandConfig) error {
	var raw string
	if err := json.Unmarshal(value, &raw); err != nil {
		return err
	}
	argv, err := parseArgv(raw)
	if err != nil {
		return err
	}
	*out = CommandConfig{Raw: raw, Argv: argv}
	return nil
}

func keyError(key string, err error) error {
	return fmt.Errorf("config key %q: %w", key, err)
}
