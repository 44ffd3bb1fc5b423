package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// EnsureParentDir makes sure the directory holding path exists.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	_, err := EnsureDir(dir)
	return err
}

// Touch creates path if missing and bumps its modification time.
func Touch(path string) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o660)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}
