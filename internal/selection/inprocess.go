package selection

import (
	"context"
	"strings"
	"sync"
)

// Provider surfaces the text selection of one own-process window.
type Provider struct {
	// AppName matches the foreground window class; empty matches any.
	AppName string
	// Get returns the current selection and whether one exists.
	Get func() (string, bool)
}

// InProcess asks registered own-process windows for their selection.
//
// The daemon itself renders no windows; settings/overlay surfaces register
// providers here so a selection made inside juno resolves without touching
// the system clipboard.
type InProcess struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewInProcess creates an empty in-process strategy.
func NewInProcess() *InProcess {
	return &InProcess{}
}

// Register adds one window selection provider.
func (s *InProcess) Register(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
}

func (s *InProcess) Name() string { return "in-process" }

// IsApplicable reports whether any registered provider covers the app.
func (s *InProcess) IsApplicable(appName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.AppName == "" || strings.EqualFold(p.AppName, appName) {
			return true
		}
	}
	return false
}

// GetSelection polls matching providers in registration order.
func (s *InProcess) GetSelection(_ context.Context, appName string) (string, bool, error) {
	s.mu.RLock()
	providers := append([]Provider(nil), s.providers...)
	s.mu.RUnlock()

	for _, p := range providers {
		if p.AppName != "" && !strings.EqualFold(p.AppName, appName) {
			continue
		}
		if p.Get == nil {
			continue
		}
		if text, ok := p.Get(); ok && text != "" {
			return text, true, nil
		}
	}
	return "", false, nil
}
