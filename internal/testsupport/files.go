package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteSessionFile stores a user record the way the dashboard does. An empty
// id writes a record without one.
func WriteSessionFile(t testing.TB, path, id string) {
	t.Helper()

	record := map[string]any{"username": "new-hire", "level": 3}
	if id != "" {
		record["id"] = id
	}
	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteScript writes an executable shell script into dir and returns its path.
func WriteScript(t testing.TB, dir, name, script string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
