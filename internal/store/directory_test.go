package store

import (
	"testing"

	"github.com/andresmejia3/gatekeeper/internal/types"
)

func TestDirectory(t *testing.T) {
	d := NewDirectory([]types.Identity{
		{ID: 1, Name: "Alice", AccessLevel: 3},
		{ID: 4, Name: "Bob", AccessLevel: 1},
	})

	tests := []struct {
		name     string
		id       int
		wantOK   bool
		wantName string
	}{
		{"Enrolled identity", 1, true, "Alice"},
		{"Another enrolled identity", 4, true, "Bob"},
		{"Gap in ids", 2, false, ""},
		{"Negative id", -1, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, ok := d.Resolve(tt.id)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%d) ok = %v, want %v", tt.id, ok, tt.wantOK)
			}
			if ok && ident.Name != tt.wantName {
				t.Errorf("Resolve(%d) name = %q, want %q", tt.id, ident.Name, tt.wantName)
			}
		})
	}
}

func TestEmptyDirectory(t *testing.T) {
	d := NewDirectory(nil)
	if _, ok := d.Resolve(1); ok {
		t.Error("empty directory must not resolve anything")
	}
}
