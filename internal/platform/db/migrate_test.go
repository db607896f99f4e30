package db

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"003_billing.sql":  {Data: []byte("CREATE TABLE bills (id SERIAL PRIMARY KEY);")},
		"001_core.sql":     {Data: []byte("CREATE TABLE users (id SERIAL PRIMARY KEY);")},
		"002_records.sql":  {Data: []byte("CREATE TABLE records (id SERIAL PRIMARY KEY);")},
		"README.md":        {Data: []byte("docs")},
		"notes_draft.sql":  {Data: []byte("SELECT 1;")},
		"sub/004_skip.sql": {Data: []byte("SELECT 1;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 3} {
		if migrations[i].Version != want {
			t.Errorf("migration %d: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("expected name 001_core.sql, got %s", migrations[0].Name)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_core.sql":  {Data: []byte("SELECT 1;")},
		"001_other.sql": {Data: []byte("SELECT 2;")},
	}

	_, err := NewMigrator(nil, fsys).LoadMigrations()
	if err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, EmbeddedMigrations()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected first version 1, got %d", migrations[0].Version)
	}
	if !strings.Contains(migrations[0].SQL, SlotIndex) {
		t.Errorf("expected core migration to create %s", SlotIndex)
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := map[int]time.Time{1: time.Now()}

	pending := Pending(migrations, applied)
	if len(pending) != 2 || pending[0].Version != 2 {
		t.Errorf("unexpected pending set: %+v", pending)
	}
}
