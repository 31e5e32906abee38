package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/replwin/schema"
)

func TestStoreLoadMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := store.Load("work")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected missing transcript")
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	saved := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return saved }
	transcript := Transcript{
		Blocks: []schema.Block{
			{Kind: schema.SpanPrompt, Content: "> "},
			{Kind: schema.SpanInput, Content: "1 + 2\r\n"},
			{Kind: schema.SpanOutput, Content: "3\r\n"},
		},
		History: []string{"1 + 2"},
	}
	if err := store.Save("work", transcript); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load("work")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected transcript to exist")
	}
	want := transcript
	want.Version = TranscriptVersion
	want.SavedAt = saved
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
	info, err := os.Stat(filepath.Join(dir, "work.json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestStoreLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	path := filepath.Join(dir, "work.json")
	if err := os.WriteFile(path, []byte("{not-json"), 0o600); err != nil {
		t.Fatalf("write bad json: %v", err)
	}
	_, _, err = store.Load("work")
	if !errors.Is(err, schema.ErrInvalidData) {
		t.Fatalf("expected invalid data error, got %v", err)
	}
}

func TestStoreLoadRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	data := []byte(`{"version":1,"blocks":[{"kind":9,"content":"x"}]}`)
	if err := os.WriteFile(filepath.Join(dir, "work.json"), data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err = store.Load("work")
	var invalid *schema.InvalidDataError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDataError, got %v", err)
	}
}

func TestStoreListAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, name := range []string{"b", "a/../c", ""} {
		if err := store.Save(name, Transcript{}); err != nil {
			t.Fatalf("save %q: %v", name, err)
		}
	}
	names, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"a_.._c", "b", "default"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if err := store.Delete("b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete("b"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, ok, _ := store.Load("b"); ok {
		t.Fatalf("expected deleted transcript")
	}
}

func TestNewStoreRequiresDir(t *testing.T) {
	if _, err := NewStore(" "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
