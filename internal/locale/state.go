// Package locale holds the current display language and the translated
// string tables the client renders.
package locale

import (
	"sync"

	"github.com/starford/healthlib/internal/models"
)

// State is the single process-wide holder of the current language.
// Toggle is its only write path; everything else reads Current and passes
// the value explicitly.
type State struct {
	mu        sync.RWMutex
	lang      models.Lang
	listeners []func(models.Lang)
}

// NewState returns a holder starting at initial (the default language if empty).
func NewState(initial models.Lang) *State {
	if initial == "" {
		initial = models.DefaultLang
	}
	return &State{lang: initial}
}

// Current returns the active language.
func (s *State) Current() models.Lang {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// Toggle switches between zh and en, notifies listeners and returns the new language.
func (s *State) Toggle() models.Lang {
	s.mu.Lock()
	s.lang = s.lang.Other()
	next := s.lang
	listeners := append([]func(models.Lang){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// OnChange registers fn to run after every Toggle.
func (s *State) OnChange(fn func(models.Lang)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
