package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// apiKeyEnv overrides the key stored in the credentials file.
const apiKeyEnv = "NEXTDNS_API_KEY"

// config is the on-disk credentials file.
type config struct {
	APIKey string `yaml:"api_key"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.Getenv("HOME")
	}
	return filepath.Join(dir, "nextdnsctl", "config.yaml")
}

// apiKey returns the key from the environment, falling back to the credentials file.
// A missing file yields an empty key so the client can report how to set one.
func apiKey(path string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(apiKeyEnv)); key != "" {
		return key, nil
	}
	cfg, err := readConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cfg.APIKey, nil
}

func readConfig(path string) (config, error) {
	if err := verifyPermissions(path); err != nil {
		return config{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("error reading config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return config{}, fmt.Errorf("error parsing \"%s\": %w", path, err)
	}
	return cfg, nil
}

// writeConfig replaces the credentials file, creating its directory when needed.
func writeConfig(path string, cfg config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to set permissions on \"%s\": %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to replace \"%s\": %w", path, err)
	}
	return nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking config permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// 0400 is accepted too: secret managers often provide the file read-only.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": %w", path, permissionError(perms))
	}
	return nil
}

type permissionError fs.FileMode

func (pe permissionError) Error() string {
	return fmt.Sprintf("expected file permissions \"-rw-------\"; found \"%s\"", fs.FileMode(pe))
}
