// Package doctor runs runtime readiness diagnostics for config, tools, and audio.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ahorihuela/juno/internal/audio"
	"github.com/ahorihuela/juno/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkAPIKey(cfg.Config))

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available", "XDG_RUNTIME_DIR is not set"))

	checks = append(checks, checkBinary("hyprctl"))
	for _, cmd := range []config.CommandConfig{cfg.Config.Clipboard, cfg.Config.ClipboardPaste, cfg.Config.TypeCmd} {
		if len(cmd.Argv) > 0 {
			checks = append(checks, checkBinary(cmd.Argv[0]))
		}
	}
	if strings.EqualFold(cfg.Config.NotifyBackend, "desktop") {
		checks = append(checks, checkBinary("busctl"))
	}

	checks = append(checks, checkAudioDevices())

	return Report{Checks: checks}
}

// checkAPIKey verifies a key is configured without revealing it.
func checkAPIKey(cfg config.Config) Check {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return Check{Name: "api key", Pass: false, Message: "openai_api_key is not configured"}
	}
	return Check{Name: "api key", Pass: true, Message: "openai_api_key is configured"}
}

// checkEnv validates one environment variable against a predicate.
func checkEnv(name string, predicate func(string) bool, pass string, fail string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: pass}
	}
	return Check{Name: name, Pass: false, Message: fail}
}

// checkBinary verifies a tool is resolvable on PATH.
func checkBinary(name string) Check {
	if _, err := exec.LookPath(name); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s not found on PATH", name)}
	}
	return Check{Name: name, Pass: true, Message: "found on PATH"}
}

// checkAudioDevices verifies at least one capture source exists.
func checkAudioDevices() Check {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	inventory, err := audio.Enumerate(ctx)
	if err != nil {
		return Check{Name: "audio", Pass: false, Message: fmt.Sprintf("list devices: %v", err)}
	}
	if len(inventory.Devices) == 0 {
		return Check{Name: "audio", Pass: false, Message: "no input devices found"}
	}
	return Check{Name: "audio", Pass: true, Message: fmt.Sprintf("%d input device(s) found", len(inventory.Devices))}
}
