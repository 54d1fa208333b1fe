package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically via a temp file in the same directory.
func WriteBytes(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := Mkdir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".nsgjm-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteBytes(path, append(data, '\n'), 0o644)
}

// WriteYAMLPrivate writes owner-only YAML; used for the credentials file.
func WriteYAMLPrivate(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteBytes(path, data, 0o600)
}

func ReadJSON(path string, v any) error {
	return readDecoded(path, v, json.Unmarshal)
}

func ReadYAML(path string, v any) error {
	return readDecoded(path, v, yaml.Unmarshal)
}

func readDecoded(path string, v any, unmarshal func([]byte, any) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// IsNotExist unwraps the read helpers' wrapped errors.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// EnsureWritableDir creates path if needed and probes it with a temp file.
func EnsureWritableDir(path string) (bool, string) {
	if path == "" {
		return false, "empty path"
	}
	if err := Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "nsg-job-manager-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
