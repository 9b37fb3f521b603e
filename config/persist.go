package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/hollandm/slurmherd/errors"
)

// createBackup copies the current config to .back1 before modifying it,
// rotating older backups to .back2 and .back3.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete oldest backup")
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// SetValue persists a single dotted key (e.g. "throttle.max_concurrent")
// into the per-user config file, creating it if necessary.
func SetValue(key string, value interface{}) error {
	configPath := UserConfigPath()
	if configPath == "" {
		return errors.New("could not determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	settings := make(map[string]interface{})
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &settings); err != nil {
			return errors.Wrap(err, "failed to parse existing config")
		}
	}

	setNested(settings, key, value)

	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	// Force reload on next Load()
	Reset()
	return nil
}

// setNested walks dotted key segments, creating intermediate tables as needed
func setNested(settings map[string]interface{}, key string, value interface{}) {
	segments := splitKey(key)
	current := settings
	for i, segment := range segments {
		if i == len(segments)-1 {
			current[segment] = value
			return
		}
		next, ok := current[segment].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[segment] = next
		}
		current = next
	}
}

func splitKey(key string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			segments = append(segments, key[start:i])
			start = i + 1
		}
	}
	return append(segments, key[start:])
}
