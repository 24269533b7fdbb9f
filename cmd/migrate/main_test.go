package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindMigrationsDirWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "migrations"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	nested := filepath.Join(root, "cmd", "migrate")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	previous, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(previous) })

	got, err := findMigrationsDir()
	if err != nil {
		t.Fatalf("findMigrationsDir: %v", err)
	}
	gotInfo, err := os.Stat(got)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	wantInfo, err := os.Stat(filepath.Join(root, "migrations"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !os.SameFile(gotInfo, wantInfo) {
		t.Fatalf("expected %s, got %s", filepath.Join(root, "migrations"), got)
	}
}
