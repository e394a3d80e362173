package service

import (
	"errors"
	"strings"
	"testing"
)

func TestCodeGenerator_Generate(t *testing.T) {
	gen := NewCodeGenerator(6, nil)

	for i := 0; i < 50; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(base62Alphabet, r) {
				t.Fatalf("code %q contains character outside base62 alphabet", code)
			}
		}
	}
}

func TestCodeGenerator_GenerateDefaultLength(t *testing.T) {
	gen := NewCodeGenerator(0, nil)

	code, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected default length 6, got %d", len(code))
	}
}

func TestCodeGenerator_ValidateCustom(t *testing.T) {
	gen := NewCodeGenerator(6, []string{"api", "admin"})

	cases := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"valid", "my-link_1", false},
		{"minimum length", "abc", false},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 51), true},
		{"invalid character", "bad!code", true},
		{"space", "bad code", true},
		{"reserved", "api", true},
		{"reserved uppercase", "API", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gen.ValidateCustom(tc.code)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidCode) {
					t.Fatalf("expected ErrInvalidCode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected %q to be valid, got %v", tc.code, err)
			}
		})
	}
}

func TestCodeGenerator_IssuedFilter(t *testing.T) {
	gen := NewCodeGenerator(6, nil)

	if gen.MaybeIssued("abc123") {
		t.Fatal("fresh filter should not report abc123 as issued")
	}

	gen.MarkIssued("abc123")
	if !gen.MaybeIssued("abc123") {
		t.Fatal("marked code must be reported as possibly issued")
	}
}

func TestCodeGenerator_Warm(t *testing.T) {
	gen := NewCodeGenerator(6, nil)
	gen.Warm([]string{"aaa111", "bbb222"})

	if !gen.MaybeIssued("aaa111") || !gen.MaybeIssued("bbb222") {
		t.Fatal("warmed codes must be reported as possibly issued")
	}
}
