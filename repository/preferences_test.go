package repository

import (
	"sync"
	"testing"

	"github.com/HmRandomGuy/T-V-B/domain"
)

func TestMemoryPreferenceStoreDefaults(t *testing.T) {
	store := NewMemoryPreferenceStore()

	p := store.Get(42)
	if p.LanguageKey != domain.DefaultLanguageKey {
		t.Errorf("expected default language %q, got %q", domain.DefaultLanguageKey, p.LanguageKey)
	}
	if p.SpeedKey != domain.DefaultSpeedKey {
		t.Errorf("expected default speed %q, got %q", domain.DefaultSpeedKey, p.SpeedKey)
	}
}

func TestMemoryPreferenceStoreSet(t *testing.T) {
	store := NewMemoryPreferenceStore()

	if err := store.SetLanguage(1, "en"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	if err := store.SetSpeed(1, "2.0"); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}

	p := store.Get(1)
	if p.LanguageKey != "en" {
		t.Errorf("expected language en, got %q", p.LanguageKey)
	}
	if p.Speed().Multiplier != 2.0 {
		t.Errorf("expected speed 2.0, got %f", p.Speed().Multiplier)
	}

	// Other chats keep their defaults.
	other := store.Get(2)
	if other.LanguageKey != domain.DefaultLanguageKey {
		t.Errorf("chat 2 should still have default language, got %q", other.LanguageKey)
	}
}

func TestMemoryPreferenceStoreRejectsUnknownKeys(t *testing.T) {
	store := NewMemoryPreferenceStore()

	if err := store.SetLanguage(1, "xx"); err == nil {
		t.Error("expected error for unknown language key")
	}
	if err := store.SetSpeed(1, "9.0"); err == nil {
		t.Error("expected error for unknown speed key")
	}
}

func TestMemoryPreferenceStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryPreferenceStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = store.SetLanguage(id, "en")
			_ = store.SetSpeed(id, "1.5")
			_ = store.Get(id)
		}(int64(i))
	}
	wg.Wait()

	p := store.Get(7)
	if p.LanguageKey != "en" || p.SpeedKey != "1.5" {
		t.Errorf("unexpected preferences after concurrent writes: %+v", p)
	}
}
