package fileutil

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteJSONAtomicRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	in := map[string]int{"a": 1, "b": 2}
	if err := WriteJSONAtomic(path, in); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}
	var out map[string]int
	found, err := ReadJSON(path, &out)
	if err != nil || !found {
		t.Fatalf("ReadJSON: found=%v err=%v", found, err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("round trip mismatch: %v", out)
	}
}

func TestReadJSONMissing(t *testing.T) {
	var out map[string]int
	found, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &out)
	if err != nil || found {
		t.Fatalf("missing file: found=%v err=%v", found, err)
	}
}

func TestCrashBeforeRenameKeepsCommittedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := WriteJSONAtomic(path, map[string]string{"v": "committed"}); err != nil {
		t.Fatalf("initial write: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	orig := rename
	rename = func(string, string) error { return errors.New("simulated crash") }
	t.Cleanup(func() { rename = orig })

	if err := WriteJSONAtomic(path, map[string]string{"v": "uncommitted"}); err == nil {
		t.Fatalf("expected error from interrupted write")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("committed file changed:\nbefore=%s\nafter=%s", before, after)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp file leaked: %d entries", len(entries))
	}
}
