package syntax

import (
	"context"
	"errors"
	"testing"
)

func TestValidate_Clean(t *testing.T) {
	v := NewValidator()
	ctx := context.Background()

	tests := []struct {
		path string
		src  string
	}{
		{"src/useCards.ts", "export function useCards(limit: number): string[] {\n  return [];\n}\n"},
		{"src/App.tsx", "import React from 'react';\nexport const App = () => <div className=\"app\">{1}</div>;\n"},
		{"src/index.js", "const a = require('a');\nmodule.exports = { a };\n"},
		{"src/Card.jsx", "export default function Card() { return null; }\n"},
		{"src/layout.css", ".grid { display: grid; }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if err := v.Validate(ctx, tt.path, []byte(tt.src)); err != nil {
				t.Errorf("Validate(%s) = %v, want nil", tt.path, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	v := NewValidator()
	ctx := context.Background()

	tests := []struct {
		path     string
		src      string
		language string
	}{
		{"src/broken.ts", "export function f( {\n  return 1;\n", "typescript"},
		{"src/Broken.tsx", "export const A = () => <div>;\n", "tsx"},
		{"src/broken.js", "const = 3;\n", "javascript"},
		{"src/broken.css", ".a { color: red;\n", "css"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := v.Validate(ctx, tt.path, []byte(tt.src))
			if err == nil {
				t.Fatalf("Validate(%s) = nil, want error", tt.path)
			}
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("error %v does not wrap ErrSyntax", err)
			}
			var serr *Error
			if !errors.As(err, &serr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if serr.Language != tt.language {
				t.Errorf("Language = %q, want %q", serr.Language, tt.language)
			}
			if serr.Pos.Line < 1 || serr.Pos.Column < 1 {
				t.Errorf("position %v should be 1-based", serr.Pos)
			}
		})
	}
}

func TestValidate_UnknownExtensionPasses(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(context.Background(), "README.md", []byte("{{{ not code")); err != nil {
		t.Errorf("unknown extension should pass, got %v", err)
	}
	if v.Supports("README.md") {
		t.Error("README.md should not be supported")
	}
	if got := v.Language("src/App.TSX"); got != "tsx" {
		t.Errorf("Language(App.TSX) = %q, want tsx", got)
	}
}
