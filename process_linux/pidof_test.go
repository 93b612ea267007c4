//go:build linux

package process_linux

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFakeProc(t *testing.T, root string, pid string, comm string, exe string) {
	t.Helper()

	dir := filepath.Join(root, pid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if exe != "" {
		if err := os.Symlink(exe, filepath.Join(dir, "exe")); err != nil {
			t.Fatal(err)
		}
	}
}

func TestOneByName(t *testing.T) {
	root := t.TempDir()
	writeFakeProc(t, root, "300", "cs2", "")
	writeFakeProc(t, root, "120", "cs2", "")
	writeFakeProc(t, root, "90", "bash", "/usr/bin/bash")
	writeFakeProc(t, root, "77", "truncated-name-", "/opt/game/truncated-name-binary")

	if err := os.WriteFile(filepath.Join(root, "uptime"), []byte("1 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := oneByName(root, "cs2")
	if err != nil {
		t.Fatal(err)
	}

	if p.PID != 120 {
		t.Fatalf("expected lowest pid 120 - got %d", p.PID)
	}

	p, err = oneByName(root, "truncated-name-binary")
	if err != nil {
		t.Fatal(err)
	}

	if p.PID != 77 {
		t.Fatalf("expected exe basename match on pid 77 - got %d", p.PID)
	}

	_, err = oneByName(root, "missing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist - got %v", err)
	}

	if _, err := oneByName(root, ""); err == nil {
		t.Fatalf("expected an error for an empty name")
	}
}
