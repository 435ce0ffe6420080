// Package prefs persists songbook user preferences in
// ~/.config/songbook/prefs.toml. Unlike the config file, preferences are
// written back by the TUI (theme cycling, pane resizing), and any read
// problem silently yields defaults.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences.
type Prefs struct {
	Theme string `toml:"theme"`
	// ListWidth is the list pane's share of the screen, in percent.
	ListWidth int `toml:"list_width"`
}

const (
	defaultPrefsPath = "~/.config/songbook/prefs.toml"
	defaultTheme     = "Nightfox"
	defaultListWidth = 38
	minListWidth     = 20
	maxListWidth     = 70
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme, ListWidth: defaultListWidth}
}

// Normalize fills blanks with defaults and clamps ListWidth.
func (p Prefs) Normalize() Prefs {
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	switch {
	case p.ListWidth == 0:
		p.ListWidth = defaultListWidth
	case p.ListWidth < minListWidth:
		p.ListWidth = minListWidth
	case p.ListWidth > maxListWidth:
		p.ListWidth = maxListWidth
	}
	return p
}

// Load reads preferences from path, falling back to defaults on any error.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Defaults(), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Defaults(), nil // missing or unreadable
	}
	var p Prefs
	if err := toml.Unmarshal(data, &p); err != nil {
		return Defaults(), nil
	}
	return p.Normalize(), nil
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p.Normalize())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
