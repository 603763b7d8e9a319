package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidateFunctionName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"hello", false},
		{"hello-world_2", false},
		{"v1.users", false},
		{"", true},
		{".", true},
		{"..", true},
		{"a/b", true},
		{"../etc", true},
		{"with space", true},
	}

	for _, tt := range tests {
		err := ValidateFunctionName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ValidateFunctionName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestNameFromSource(t *testing.T) {
	tests := map[string]string{
		"src/hello.ts":      "hello",
		"/abs/path/api.mjs": "api",
		"plain.es6":         "plain",
		"dotted.name.js":    "dotted.name",
	}
	for in, want := range tests {
		if got := NameFromSource(in); got != want {
			t.Fatalf("NameFromSource(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompileErrorUnwrap(t *testing.T) {
	cause := errors.New("unexpected token")
	err := fmt.Errorf("request: %w", &CompileError{Source: "src/a.ts", Err: cause})

	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if ce.Error() != "compile src/a.ts: unexpected token" {
		t.Fatalf("unexpected message: %q", ce.Error())
	}
}
