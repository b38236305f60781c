package resource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPathHelpers(t *testing.T) {
	p := Path("block/stone")
	if p.Prepend("models/") != "models/block/stone" {
		t.Errorf("Prepend gave %s", p.Prepend("models/"))
	}
	if p.Append(".json") != "block/stone.json" {
		t.Errorf("Append gave %s", p.Append(".json"))
	}
}

func TestMapProvider(t *testing.T) {
	p := NewMapProvider()
	p.PutString("a/b", "hello")

	s, err := p.GetString("a/b")
	if err != nil || s != "hello" {
		t.Errorf("GetString gave %q, %v", s, err)
	}

	_, err = p.GetBytes("missing")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if notFound.Path != "missing" {
		t.Errorf("Error path: %s", notFound.Path)
	}
}

func TestDirProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "models", "x.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &DirProvider{Root: dir}
	s, err := p.GetString("models/x.json")
	if err != nil || s != "{}" {
		t.Errorf("GetString gave %q, %v", s, err)
	}

	_, err = p.GetBytes("models/y.json")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}
