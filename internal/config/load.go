package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, validates, and decrypts the runtime configuration.
//
// Invalid or corrupted files are archived next to the original and the
// defaults are reinitialized; the archive path is surfaced as a warning.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	warnings := make([]Warning, 0)

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
		return Loaded{Path: resolvedPath, Config: base, Warnings: warnings, Exists: false}, nil
	}

	cfg, parseWarnings, parseErr := Parse(content, base)
	if parseErr == nil {
		parseWarnings, parseErr = validateInto(&cfg, parseWarnings)
	}
	if parseErr != nil {
		archived, archiveErr := archiveCorrupt(resolvedPath)
		if archiveErr != nil {
			return Loaded{}, fmt.Errorf("config %q is invalid (%v) and could not be archived: %w", resolvedPath, parseErr, archiveErr)
		}
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config %q is invalid (%v); archived to %q and reinitialized with defaults", resolvedPath, parseErr, archived),
		})
		if err := Save(resolvedPath, base); err != nil {
			return Loaded{}, fmt.Errorf("reinitialize config %q: %w", resolvedPath, err)
		}
		return Loaded{Path: resolvedPath, Config: base, Warnings: warnings, Exists: true}, nil
	}
	warnings = append(warnings, parseWarnings...)

	if cfg.OpenAIAPIKey != "" {
		key, keyErr := LoadOrCreateKey(filepath.Dir(resolvedPath))
		if keyErr != nil {
			return Loaded{}, keyErr
		}
		plaintext, decErr := DecryptSecret(key, cfg.OpenAIAPIKey)
		if decErr != nil {
			return Loaded{}, fmt.Errorf("config %q: openai_api_key: %w", resolvedPath, decErr)
		}
		cfg.OpenAIAPIKey = plaintext
	}

	return Loaded{Path: resolvedPath, Config: cfg, Warnings: warnings, Exists: true}, nil
}

// Save writes configuration to disk with the API key encrypted at rest.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if cfg.OpenAIAPIKey != "" {
		key, err := LoadOrCreateKey(filepath.Dir(path))
		if err != nil {
			return err
		}
		sealed, err := EncryptSecret(key, cfg.OpenAIAPIKey)
		if err != nil {
			return err
		}
		cfg.OpenAIAPIKey = sealed
	}

	content, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}

// archiveCorrupt renames an unreadable config file out of the way.
func archiveCorrupt(path string) (string, error) {
	archived := fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
	if err := os.Rename(path, archived); err != nil {
		return "", err
	}
	return archived, nil
}
