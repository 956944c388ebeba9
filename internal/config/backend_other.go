//go:build !darwin

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// xdgDir resolves an XDG base directory: the env var when set, else
// home/fallback, else the working directory.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), Service)
}

func apiKeyHint() string {
	return " or `sakha config set gateway.api_key <key>`"
}

// fileBackend keeps settings as a flat YAML mapping of dotted keys in
// $XDG_CONFIG_HOME/sakha/config.yaml.
type fileBackend struct {
	path   string
	values map[string]any
}

func newPlatformBackend() ConfigBackend {
	b := &fileBackend{
		path:   filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), Service, "config.yaml"),
		values: map[string]any{},
	}
	if err := readYAML(b.path, &b.values); err != nil {
		slog.Warn("ignoring unreadable config file, using defaults", "path", b.path, "error", err)
	}
	if b.values == nil {
		b.values = map[string]any{}
	}
	return b
}

// readYAML decodes path into v. A missing file is not an error.
func readYAML(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, v)
}

// writeYAML replaces path with v, readable only by the owner.
func writeYAML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	raw, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, raw, 0o600)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: unexpected %T value", key, v)
}

func (b *fileBackend) SetString(key, val string) error {
	b.values[key] = val
	return writeYAML(b.path, b.values)
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.values[key] = val
	return writeYAML(b.path, b.values)
}

func (b *fileBackend) Delete(key string) error {
	delete(b.values, key)
	return writeYAML(b.path, b.values)
}
