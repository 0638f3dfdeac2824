package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultHeader = `# gostt-code configuration
#
# The API key can be set here (api.api_key) or in the environment variable
# named by api.api_key_env. Durations use Go syntax: 500ms, 30s, 5m.
# Insertion modes: cursor, replace-selection, comment, new-line, clipboard, chat.

`

// WriteDefault writes the default configuration to DefaultConfigPath and
// returns the path written. If a config file already exists it is left
// untouched and WriteDefault returns ("", nil).
func WriteDefault() (string, error) {
	return WriteDefaultTo(DefaultConfigPath())
}

// WriteDefaultTo is WriteDefault for an explicit path.
func WriteDefaultTo(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(defaultHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
