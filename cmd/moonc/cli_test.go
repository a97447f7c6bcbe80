package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		input, outDir, want string
	}{
		{"src/a.mpk", "", filepath.Join("src", "a.mir")},
		{"src/a.mpk", "build", filepath.Join("build", "a.mir")},
		{"b", "out", filepath.Join("out", "b.mir")},
	}
	for _, tt := range tests {
		if got := artifactPath(tt.input, tt.outDir); got != tt.want {
			t.Errorf("artifactPath(%q, %q) = %q, want %q", tt.input, tt.outDir, got, tt.want)
		}
	}
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mpk", "a.mpk", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := expandInputs([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.mpk"), filepath.Join(dir, "b.mpk")}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expandInputs = %v, want %v", got, want)
	}

	empty := t.TempDir()
	if _, err := expandInputs([]string{empty}); err == nil {
		t.Fatal("expected error for a directory without chunks")
	}
}

func TestRenderTableAlignsWideNames(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, "demo", []string{"function", "name", "deps"}, [][]string{
		{"root", "main", "0"},
		{"0", "counter_fn", ""},
		{"1", "計算", ""},
	}, false)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "demo" {
		t.Fatalf("title = %q", lines[0])
	}
	if lines[1] != "function  name        deps" {
		t.Fatalf("header = %q", lines[1])
	}
	if lines[4] != "1         計算" {
		t.Fatalf("row = %q", lines[4])
	}
}
