package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// readJSON loads a JSON file into out. A missing file is reported through
// the missing return, not as an error, so callers can start empty.
func readJSON(path string, out interface{}) (missing bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return false, nil
}

// writeJSON writes v to path atomically (temp file plus rename).
func writeJSON(path string, v interface{}) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
