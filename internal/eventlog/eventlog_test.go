package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendCreatesCurrentLogSymlink(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, 30, nil)
	defer w.Close()

	if err := w.Append("zone 3 triggered"); err != nil {
		t.Fatal(err)
	}

	target, err := os.Readlink(filepath.Join(dir, "current.log"))
	if err != nil {
		t.Fatalf("current.log symlink missing: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, target))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "zone 3 triggered") {
		t.Errorf("log content = %q, missing expected line", data)
	}
}

func TestCleanupRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "2020-01-01.log")
	if err := os.WriteFile(oldPath, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().AddDate(-1, 0, 0)
	os.Chtimes(oldPath, old, old)

	w := New(dir, 30, nil)
	w.Cleanup()

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("expected old log file to be removed")
	}
}

func TestCleanupDisabledWhenRetentionZero(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "2020-01-01.log")
	os.WriteFile(oldPath, []byte("old\n"), 0644)
	old := time.Now().AddDate(-1, 0, 0)
	os.Chtimes(oldPath, old, old)

	w := New(dir, 0, nil)
	w.Cleanup()

	if _, err := os.Stat(oldPath); err != nil {
		t.Error("file should not have been removed when retention is disabled")
	}
}
