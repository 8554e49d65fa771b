package repository

import (
	"fmt"
	"sync"

	"github.com/HmRandomGuy/T-V-B/domain"
	"github.com/HmRandomGuy/T-V-B/domain/repositories"
)

// MemoryPreferenceStore is an in-memory implementation of PreferenceStore.
// Preferences are process-local; a restart falls back to defaults.
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[int64]domain.Preferences
}

var _ repositories.PreferenceStore = (*MemoryPreferenceStore)(nil)

// NewMemoryPreferenceStore creates an empty preference store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{
		prefs: make(map[int64]domain.Preferences),
	}
}

// Get returns the chat's preferences, or the defaults if the chat never
// changed anything.
func (m *MemoryPreferenceStore) Get(chatID int64) domain.Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.prefs[chatID]; ok {
		return p
	}
	return domain.DefaultPreferences()
}

// SetLanguage updates the chat's synthesis language.
func (m *MemoryPreferenceStore) SetLanguage(chatID int64, key string) error {
	if _, ok := domain.Languages[key]; !ok {
		return fmt.Errorf("unknown language key %q", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prefs[chatID]
	if !ok {
		p = domain.DefaultPreferences()
	}
	p.LanguageKey = key
	m.prefs[chatID] = p
	return nil
}

// SetSpeed updates the chat's playback speed.
func (m *MemoryPreferenceStore) SetSpeed(chatID int64, key string) error {
	if _, ok := domain.Speeds[key]; !ok {
		return fmt.Errorf("unknown speed key %q", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prefs[chatID]
	if !ok {
		p = domain.DefaultPreferences()
	}
	p.SpeedKey = key
	m.prefs[chatID] = p
	return nil
}
