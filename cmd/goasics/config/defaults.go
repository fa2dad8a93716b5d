package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// Locations returns the config file locations in precedence order:
// the working directory, the user directory, then the system directory.
func Locations() []string {
	var locations []string

	if cwd, err := os.Getwd(); err == nil {
		locations = append(locations, filepath.Join(cwd, FileName))
	}
	if p := UserConfigPath(); p != "" {
		locations = append(locations, p)
	}
	if runtime.GOOS == "windows" {
		if programData := os.Getenv("ProgramData"); programData != "" {
			locations = append(locations, filepath.Join(programData, "goasics", FileName))
		}
	} else {
		locations = append(locations, filepath.Join("/etc", "goasics", FileName))
	}
	return locations
}

// Find returns the first existing config file, or "".
func Find() string {
	for _, loc := range Locations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// UserConfigPath returns ~/.goasics/goasics.config.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".goasics", FileName)
}

// LoadOrEmpty loads path, or the first config found when path is empty. A missing file yields an
// empty configuration. The returned path is where the configuration was read from, or where a
// new one should be written.
func LoadOrEmpty(path string) (*Config, string, error) {
	if path == "" {
		path = Find()
	}
	if path == "" {
		return New(), UserConfigPath(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), path, nil
		}
		return nil, path, err
	}
	return cfg, path, nil
}
