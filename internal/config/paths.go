package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const dirName = "un-potato"

// Dir is <UserConfigDir>/un-potato.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, dirName), nil
}

// DefaultPath is where the config file is looked up when --config is not given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultHistoryPath picks a file name matching the history driver.
func DefaultHistoryPath(driver string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if driver == "sqlite" {
		return filepath.Join(dir, "history.db"), nil
	}
	return filepath.Join(dir, "history.jsonl"), nil
}
