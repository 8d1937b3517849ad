package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFiles_SortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_presence_index.sql", "001_initial_schema.sql", "README.md", "abc.sql", "000_zero.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("Expected 2 migrations, got %d: %+v", len(files), files)
	}
	if files[0].version != 1 || files[0].name != "001_initial_schema.sql" {
		t.Errorf("Expected 001 first, got %+v", files[0])
	}
	if files[1].version != 2 {
		t.Errorf("Expected version 2 second, got %+v", files[1])
	}
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing migrations directory")
	}
}
