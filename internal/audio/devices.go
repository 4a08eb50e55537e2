package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one capture source surfaced to juno.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Usable reports whether the device can record right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// Inventory is one snapshot of the Pulse source list.
type Inventory struct {
	Devices []Device
}

// Enumerate queries the Pulse server for the current capture inventory.
func Enumerate(_ context.Context) (Inventory, error) {
	client, err := newPulseClient()
	if err != nil {
		return Inventory{}, err
	}
	defer client.Close()

	defaultID := ""
	if defaultSource, err := client.DefaultSource(); err == nil {
		defaultID = defaultSource.ID()
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return Inventory{}, fmt.Errorf("list sources: %w", err)
	}

	inv := Inventory{Devices: make([]Device, 0, len(reply))}
	for _, source := range reply {
		if source == nil {
			continue
		}
		inv.Devices = append(inv.Devices, deviceFromSource(source, defaultID))
	}
	return inv, nil
}

// Default returns the system default capture device, when one exists.
func (inv Inventory) Default() (Device, bool) {
	for _, dev := range inv.Devices {
		if dev.Default {
			return dev, true
		}
	}
	return Device{}, false
}

// Resolve picks the capture device for a user preference.
//
// Matching is scored rather than first-wins: an exact ID match beats an ID
// substring, which beats a description substring. An unusable or missing
// preference falls back to the system default with a warning.
func (inv Inventory) Resolve(preferred string) (Selection, error) {
	if len(inv.Devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	preferred = strings.TrimSpace(strings.ToLower(preferred))
	if preferred == "" || preferred == "default" {
		return inv.defaultSelection("")
	}

	best, score := inv.bestMatch(preferred)
	if score == 0 {
		return inv.defaultSelection(
			fmt.Sprintf("default_microphone %q did not match any device; using system default", preferred))
	}
	if best.Usable() {
		return Selection{Device: best}, nil
	}

	reason := "unavailable"
	if best.Muted {
		reason = "muted"
	}
	return inv.defaultSelection(
		fmt.Sprintf("default_microphone %q is %s; falling back to system default", best.ID, reason))
}

// bestMatch scores every device against the preference term.
func (inv Inventory) bestMatch(term string) (Device, int) {
	const (
		scoreExactID  = 3
		scoreIDPart   = 2
		scoreDescPart = 1
	)

	var best Device
	bestScore := 0
	for _, dev := range inv.Devices {
		id := strings.ToLower(dev.ID)
		desc := strings.ToLower(dev.Description)

		score := 0
		switch {
		case id == term:
			score = scoreExactID
		case strings.Contains(id, term):
			score = scoreIDPart
		case strings.Contains(desc, term):
			score = scoreDescPart
		}
		if score > bestScore {
			best = dev
			bestScore = score
		}
	}
	return best, bestScore
}

// defaultSelection resolves the system default, validating usability.
func (inv Inventory) defaultSelection(warning string) (Selection, error) {
	def, ok := inv.Default()
	if !ok {
		return Selection{}, errors.New("default audio source is unavailable")
	}
	if !def.Available {
		return Selection{}, fmt.Errorf("audio device %q is not available", def.ID)
	}
	if def.Muted {
		return Selection{}, fmt.Errorf("audio device %q is muted", def.ID)
	}
	return Selection{Device: def, Warning: warning, Fallback: warning != ""}, nil
}

// SelectDevice enumerates and resolves in one call; this is the recorder's
// entry point.
func SelectDevice(ctx context.Context, preferred string) (Selection, error) {
	inv, err := Enumerate(ctx)
	if err != nil {
		return Selection{}, err
	}
	return inv.Resolve(preferred)
}

// deviceFromSource flattens one Pulse source reply into a Device.
func deviceFromSource(source *pulseproto.GetSourceInfoReply, defaultID string) Device {
	dev := Device{
		ID:          source.SourceName,
		Description: source.Device,
		Muted:       source.Mute,
		Default:     source.SourceName == defaultID,
		Available:   true,
	}

	switch source.State {
	case 0:
		dev.State = "running"
	case 1:
		dev.State = "idle"
	case 2:
		dev.State = "suspended"
	default:
		dev.State = fmt.Sprintf("unknown(%d)", source.State)
	}

	// Port availability: a source with ports is usable only when its active
	// port is not explicitly marked unavailable (PulseAudio: unknown=0,
	// no=1, yes=2).
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		dev.Available = port.Available != 1
		break
	}
	return dev
}

// newPulseClient opens a juno-branded Pulse connection.
func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("juno"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}
