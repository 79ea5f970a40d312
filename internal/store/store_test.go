package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMigrationFilesOrderedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"0002_comments.up.sql",
		"0001_init.up.sql",
		"0001_init.down.sql",
		"notes.txt",
		"0010_indexes.up.sql",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- sql"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles failed: %v", err)
	}

	want := []string{
		filepath.Join(dir, "0001_init.up.sql"),
		filepath.Join(dir, "0002_comments.up.sql"),
		filepath.Join(dir, "0010_indexes.up.sql"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("migrationFiles = %v, want %v", files, want)
	}
}

func TestMarshalStringsRoundTrip(t *testing.T) {
	encoded, err := marshalStrings([]string{"task-1-0", "task-1-1"})
	if err != nil {
		t.Fatalf("marshalStrings failed: %v", err)
	}
	decoded, err := unmarshalStrings([]byte(encoded))
	if err != nil {
		t.Fatalf("unmarshalStrings failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != "task-1-0" {
		t.Errorf("unexpected round trip: %v", decoded)
	}
}

func TestMarshalStringsNilBecomesEmptyArray(t *testing.T) {
	encoded, err := marshalStrings(nil)
	if err != nil {
		t.Fatalf("marshalStrings failed: %v", err)
	}
	if encoded != "[]" {
		t.Errorf("nil slice should encode as [], got %s", encoded)
	}
	decoded, err := unmarshalStrings(nil)
	if err != nil {
		t.Fatalf("unmarshalStrings failed: %v", err)
	}
	if decoded == nil || len(decoded) != 0 {
		t.Errorf("nil column should decode to empty slice, got %v", decoded)
	}
}

func TestSortedKeysDeterministic(t *testing.T) {
	fields := map[string]any{"title": "x", "epic": "y", "status": "z"}
	want := []string{"epic", "status", "title"}
	for i := 0; i < 5; i++ {
		if got := sortedKeys(fields); !reflect.DeepEqual(got, want) {
			t.Fatalf("sortedKeys = %v, want %v", got, want)
		}
	}
}
