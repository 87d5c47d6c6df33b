package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestResolveWithin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name  string
		elems []string
		want  string
	}{
		{"nested file", []string{"sub", "file.json"}, filepath.Join(base, "sub", "file.json")},
		{"dot dot in middle", []string{"a", "b", "..", "c"}, filepath.Join(base, "a", "c")},
		{"absolute element stays inside", []string{"/etc/passwd"}, filepath.Join(base, "etc", "passwd")},
		{"single dot", []string{"."}, base},
		{"no elements", nil, base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(base, tt.elems...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestResolveWithinBlocksEscape(t *testing.T) {
	base := t.TempDir()

	for _, elems := range [][]string{
		{".."},
		{"..", "..", "etc", "passwd"},
		{"a", "..", "..", "etc"},
	} {
		_, err := ResolveWithin(base, elems...)
		if err == nil {
			t.Fatalf("expected path escape error for %v", elems)
		}
		if !strings.Contains(err.Error(), "escapes base directory") {
			t.Errorf("expected escape error, got: %v", err)
		}
	}
}

func TestResolveWithinEmptyBase(t *testing.T) {
	if _, err := ResolveWithin("", "file.json"); err == nil {
		t.Fatal("expected error for empty base directory")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got, err := ExpandPath("~/.seca-guard/history")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(home, ".seca-guard", "history"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	wd, _ := os.Getwd()
	got, err = ExpandPath("relative/dir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(wd, "relative", "dir"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if _, err := ExpandPath("  "); err == nil {
		t.Error("expected error for empty path")
	}
}
