package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"kpidash/internal/core"
)

// PreferencesRelPath is the preferences file below the XDG config home.
const PreferencesRelPath = "kpidash/preferences.yaml"

// Preferences is the on-disk shape of the dashboard defaults.
type Preferences struct {
	Dashboard core.Settings `yaml:"dashboard"`
}

// PreferencesPath returns file when set, otherwise the XDG location.
func PreferencesPath(file string) string {
	if file != "" {
		return file
	}
	return filepath.Join(xdg.ConfigHome, PreferencesRelPath)
}

// LoadPreferences reads dashboard defaults. A missing file yields
// core.DefaultSettings; fields absent from the file keep their defaults.
func LoadPreferences(file string) (core.Settings, error) {
	path := PreferencesPath(file)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return core.DefaultSettings(), nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("read preferences %s: %w", path, err)
	}

	prefs := Preferences{Dashboard: core.DefaultSettings()}
	if err := yaml.Unmarshal(b, &prefs); err != nil {
		return core.Settings{}, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	if err := prefs.Dashboard.Validate(); err != nil {
		return core.Settings{}, fmt.Errorf("preferences %s: %w", path, err)
	}
	return prefs.Dashboard, nil
}

// SavePreferences writes s as the dashboard defaults, creating parent
// directories as needed.
func SavePreferences(file string, s core.Settings) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	path := PreferencesPath(file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create preferences dir: %w", err)
	}
	b, err := yaml.Marshal(Preferences{Dashboard: s})
	if err != nil {
		return "", fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write preferences: %w", err)
	}
	return path, nil
}
