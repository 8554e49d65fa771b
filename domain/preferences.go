package domain

// Language describes one selectable synthesis language.
type Language struct {
	Code  string
	Label string
	Flag  string
}

// Speed describes one selectable playback speed.
type Speed struct {
	Multiplier float64
	Label      string
}

// Languages lists the synthesis languages offered in the settings
// dashboard, keyed by their selection key.
var Languages = map[string]Language{
	"en": {Code: "en", Label: "English", Flag: "🇺🇸"},
	"hi": {Code: "hi", Label: "Hindi", Flag: "🇮🇳"},
	"fr": {Code: "fr", Label: "French", Flag: "🇫🇷"},
	"es": {Code: "es", Label: "Spanish", Flag: "🇪🇸"},
}

// Speeds lists the selectable playback speeds, keyed by their selection key.
var Speeds = map[string]Speed{
	"1.0": {Multiplier: 1.0, Label: "🚶 1x (Normal)"},
	"1.5": {Multiplier: 1.5, Label: "🏃 1.5x"},
	"2.0": {Multiplier: 2.0, Label: "💨 2x (Fast)"},
	"2.5": {Multiplier: 2.5, Label: "🚀 2.5x"},
	"3.0": {Multiplier: 3.0, Label: "⚡ 3x (Very Fast)"},
}

const (
	DefaultLanguageKey = "hi"
	DefaultSpeedKey    = "1.0"
)

// Preferences holds one chat's synthesis settings.
type Preferences struct {
	LanguageKey string
	SpeedKey    string
}

// DefaultPreferences returns the settings applied to chats that never
// touched the dashboard.
func DefaultPreferences() Preferences {
	return Preferences{LanguageKey: DefaultLanguageKey, SpeedKey: DefaultSpeedKey}
}

// Language resolves the chat's language, falling back to the default for
// unknown keys.
func (p Preferences) Language() Language {
	if l, ok := Languages[p.LanguageKey]; ok {
		return l
	}
	return Languages[DefaultLanguageKey]
}

// Speed resolves the chat's speed, falling back to the default for unknown
// keys.
func (p Preferences) Speed() Speed {
	if s, ok := Speeds[p.SpeedKey]; ok {
		return s
	}
	return Speeds[DefaultSpeedKey]
}
