//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// defaultsDomain is the UserDefaults domain holding sakha's settings.
const defaultsDomain = "com.sakha.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return Service + "-data"
	}
	return filepath.Join(home, "Library", "Application Support", Service)
}

func apiKeyHint() string {
	return " or the macOS Keychain (service " + Service + ", account gateway_api_key)"
}

// defaultsBackend stores each key in UserDefaults through the defaults tool.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend{domain: defaultsDomain}
}

// run invokes `defaults <verb> <domain> args...` and returns trimmed output.
func (b defaultsBackend) run(verb string, args ...string) (string, error) {
	out, err := exec.Command("defaults", append([]string{verb, b.domain}, args...)...).CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("defaults %s %s: %w (%s)", verb, strings.Join(args, " "), err, text)
	}
	return text, nil
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	v, err := b.run("read", key)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		// defaults exits 1 for a key that was never written.
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	v, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

func (b defaultsBackend) SetString(key, val string) error {
	_, err := b.run("write", key, "-string", val)
	return err
}

func (b defaultsBackend) SetInt(key string, val int) error {
	_, err := b.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (b defaultsBackend) Delete(key string) error {
	_, err := b.run("delete", key)
	return err
}
