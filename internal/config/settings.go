package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kartoza/attention-is-key/internal/attention"
)

const appDirName = "attention-is-key"

// Settings are user preferences that survive restarts
type Settings struct {
	DefaultModel    string `yaml:"default_model" json:"default_model"`
	CaseInsensitive bool   `yaml:"case_insensitive" json:"case_insensitive"`
	ContentPackPath string `yaml:"content_pack_path,omitempty" json:"content_pack_path,omitempty"`
}

// DataStoreDir returns the per-user directory for settings and imported
// content. ATTN_CONFIG_DIR overrides the platform default.
func DataStoreDir() (string, error) {
	if dir := os.Getenv("ATTN_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

func settingsPath() (string, error) {
	dir, err := DataStoreDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// LoadSettings reads the saved settings. A missing file yields defaults.
func LoadSettings() (*Settings, error) {
	settings := &Settings{DefaultModel: attention.DefaultModelID}

	path, err := settingsPath()
	if err != nil {
		return settings, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return &Settings{DefaultModel: attention.DefaultModelID}, fmt.Errorf("failed to parse settings: %w", err)
	}
	if _, err := attention.LookupModel(settings.DefaultModel); err != nil {
		settings.DefaultModel = attention.DefaultModelID
	}
	return settings, nil
}

// SaveSettings writes settings, rejecting models outside the catalog
func SaveSettings(settings *Settings) error {
	if _, err := attention.LookupModel(settings.DefaultModel); err != nil {
		return err
	}
	path, err := settingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
