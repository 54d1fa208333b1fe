package filestore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteYAMLPrivate_UsesOwnerOnlyMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	in := map[string]string{"username": "alice"}
	if err := WriteYAMLPrivate(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	var out map[string]string
	if err := ReadYAML(path, &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out["username"] != "alice" {
		t.Fatalf("unexpected content: %#v", out)
	}
}

func TestReadJSON_MissingFileIsNotExist(t *testing.T) {
	var v map[string]any
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &v)
	if err == nil || !IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestWriteBytes_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteBytes(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestEnsureWritableDir(t *testing.T) {
	ok, msg := EnsureWritableDir(filepath.Join(t.TempDir(), "out"))
	if !ok {
		t.Fatalf("expected writable, got %s", msg)
	}
	if ok, _ := EnsureWritableDir(""); ok {
		t.Fatalf("expected empty path to fail")
	}
}
