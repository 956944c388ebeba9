//go:build !darwin

package config

import (
	"fmt"
	"path/filepath"
)

// Without a system keychain, secrets live in a 0600 YAML file grouped by
// service: {service: {account: value}}.
type secretFile map[string]map[string]string

func secretsFilePath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), Service, "secrets.yaml")
}

func keychainExec(service, account string) ([]byte, error) {
	var secrets secretFile
	if err := readYAML(secretsFilePath(), &secrets); err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret %s/%s", service, account)
	}
	return []byte(val), nil
}

func keychainStore(service, account, value string) error {
	path := secretsFilePath()
	var secrets secretFile
	if err := readYAML(path, &secrets); err != nil {
		return fmt.Errorf("reading secrets: %w", err)
	}
	if secrets == nil {
		secrets = secretFile{}
	}
	if secrets[service] == nil {
		secrets[service] = map[string]string{}
	}
	secrets[service][account] = value
	return writeYAML(path, secrets)
}
