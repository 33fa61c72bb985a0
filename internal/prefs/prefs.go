// Package prefs holds the UI preferences that survive reloads: whether the
// intro sequence already played this session, the selected theme and the
// selected locale. It is the only state kept through the persisted adapter;
// content is always loaded from the content service.
package prefs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/persist"
)

// Theme is the colour scheme selection.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	default:
		return "", fmt.Errorf("invalid theme %q (valid: light, dark, system)", s)
	}
}

// ParseLocale validates and canonicalizes a BCP 47 language tag.
func ParseLocale(s string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", s, err)
	}
	return tag.String(), nil
}

const (
	introKey     = "intro-played"
	introVersion = 1

	themeKey = "theme"
	// Version 1 stored the theme name as a bare string. Version 2 stores a
	// themeRecord.
	themeVersion       = 2
	legacyThemeVersion = 1

	localeKey     = "locale"
	localeVersion = 1
)

type themeRecord struct {
	Mode      Theme     `json:"mode"`
	ChangedAt time.Time `json:"changedAt"`
}

// Prefs is a point-in-time view of every preference.
type Prefs struct {
	IntroPlayed bool   `json:"introPlayed"`
	Theme       Theme  `json:"theme"`
	Locale      string `json:"locale"`
}

// Store reads and writes preferences. Session-scoped values go to session,
// the rest to durable.
type Store struct {
	session       *persist.Adapter
	durable       *persist.Adapter
	defaultTheme  Theme
	defaultLocale string
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults sets the values reported when nothing is persisted.
func WithDefaults(theme Theme, locale string) Option {
	return func(s *Store) {
		if theme != "" {
			s.defaultTheme = theme
		}
		if locale != "" {
			s.defaultLocale = locale
		}
	}
}

// New returns a preferences store.
func New(session, durable *persist.Adapter, opts ...Option) *Store {
	s := &Store{
		session:       session.Scope("prefs"),
		durable:       durable.Scope("prefs"),
		defaultTheme:  ThemeSystem,
		defaultLocale: "en",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IntroPlayed reports whether the intro sequence has played this session.
func (s *Store) IntroPlayed() bool {
	played, _ := persist.Read[bool](s.session, introKey, introVersion)
	return played
}

// MarkIntroPlayed records that the intro sequence has played.
func (s *Store) MarkIntroPlayed() {
	persist.Write(s.session, introKey, introVersion, true)
}

// Theme returns the selected theme, upgrading a version 1 record in place.
func (s *Store) Theme() Theme {
	if rec, ok := persist.Read[themeRecord](s.durable, themeKey, themeVersion); ok {
		if t, err := ParseTheme(string(rec.Mode)); err == nil {
			return t
		}
	}
	if t, ok := s.migrateTheme(); ok {
		return t
	}
	return s.defaultTheme
}

func (s *Store) migrateTheme() (Theme, bool) {
	legacy, err := persist.Lookup[string](s.durable, themeKey, legacyThemeVersion)
	if err != nil {
		return "", false
	}
	t, err := ParseTheme(legacy)
	if err != nil {
		return "", false
	}
	if err := persist.Store(s.durable, themeKey, themeVersion, themeRecord{Mode: t, ChangedAt: s.now().UTC()}); err != nil {
		logging.For("prefs").Debug("theme migration not saved", "error", err)
	}
	return t, true
}

// SetTheme persists t.
func (s *Store) SetTheme(t Theme) error {
	t, err := ParseTheme(string(t))
	if err != nil {
		return err
	}
	persist.Write(s.durable, themeKey, themeVersion, themeRecord{Mode: t, ChangedAt: s.now().UTC()})
	return nil
}

// Locale returns the selected locale.
func (s *Store) Locale() string {
	if l, ok := persist.Read[string](s.durable, localeKey, localeVersion); ok {
		if canonical, err := ParseLocale(l); err == nil {
			return canonical
		}
	}
	return s.defaultLocale
}

// SetLocale persists locale after canonicalizing it.
func (s *Store) SetLocale(locale string) error {
	canonical, err := ParseLocale(locale)
	if err != nil {
		return err
	}
	persist.Write(s.durable, localeKey, localeVersion, canonical)
	return nil
}

// Get returns every preference.
func (s *Store) Get() Prefs {
	return Prefs{IntroPlayed: s.IntroPlayed(), Theme: s.Theme(), Locale: s.Locale()}
}

// Set updates one preference by name.
func (s *Store) Set(name, value string) error {
	switch name {
	case "theme":
		t, err := ParseTheme(value)
		if err != nil {
			return err
		}
		return s.SetTheme(t)
	case "locale":
		return s.SetLocale(value)
	case "intro-played", "introPlayed":
		if value != "true" {
			return errors.New("intro-played can only be set to true; use reset to clear it")
		}
		s.MarkIntroPlayed()
		return nil
	default:
		return fmt.Errorf("unknown preference %q (valid: theme, locale, intro-played)", name)
	}
}

// Reset removes every persisted preference.
func (s *Store) Reset() {
	s.session.Clear()
	s.durable.Clear()
}
