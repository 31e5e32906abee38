package clipboard

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/replwin/schema"
)

func TestMemoryCopiesData(t *testing.T) {
	mem := NewMemory()
	data := schema.DataObject{schema.ClipboardTextFormat: "1 + 2"}
	if err := mem.SetData(data); err != nil {
		t.Fatalf("set data: %v", err)
	}
	data[schema.ClipboardTextFormat] = "changed"
	got, err := mem.GetData()
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if text, _ := got.Text(); text != "1 + 2" {
		t.Fatalf("expected stored text, got %q", text)
	}
}

func TestSystemKeepsBlocksWhileTextMatches(t *testing.T) {
	var host string
	sys := newSystem(nil, func() (string, error) { return host, nil }, func(s string) error {
		host = s
		return nil
	})
	data := schema.DataObject{
		schema.ClipboardTextFormat:   "> 1\r\n",
		schema.ClipboardBlocksFormat: `[{"kind":0,"content":"> "},{"kind":2,"content":"1\r\n"}]`,
	}
	if err := sys.SetData(data); err != nil {
		t.Fatalf("set data: %v", err)
	}
	got, err := sys.GetData()
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	host = "copied elsewhere"
	got, err = sys.GetData()
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	want := schema.DataObject{schema.ClipboardTextFormat: "copied elsewhere"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestSystemWriteError(t *testing.T) {
	boom := errors.New("boom")
	sys := newSystem(nil, func() (string, error) { return "", nil }, func(string) error { return boom })
	if err := sys.SetData(schema.DataObject{schema.ClipboardTextFormat: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}
