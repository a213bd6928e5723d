package store

import (
	"io/fs"
	"regexp"
	"testing"

	"givinggrid/api/db/migrations"
)

func TestEmbeddedMigrationsAreWellFormed(t *testing.T) {
	entries, err := fs.ReadDir(migrations.Files, ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	pattern := regexp.MustCompile(`^\d{4}_[a-z0-9_]+\.up\.sql$`)
	seen := map[string]bool{}
	count := 0

	for _, entry := range entries {
		name := entry.Name()
		if !pattern.MatchString(name) {
			t.Errorf("migration %q does not match NNNN_name.up.sql", name)
			continue
		}
		version := name[:4]
		if seen[version] {
			t.Errorf("duplicate migration version %s", version)
		}
		seen[version] = true
		count++

		contents, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(contents) == 0 {
			t.Errorf("migration %s is empty", name)
		}
	}

	if count == 0 {
		t.Fatal("no migrations embedded")
	}
}
