package syntax

import (
	"errors"
	"testing"
)

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantErr  bool
		wantLine int
	}{
		{name: "empty", src: ""},
		{name: "nested", src: "function f(a) {\n  return [a, {b: (1)}];\n}\n"},
		{name: "string with braces", src: "const s = \"}}]\";\nconst t = '(';\n"},
		{name: "line comment", src: "// }\nconst a = {};\n"},
		{name: "block comment", src: "/* {\n ( */\nconst a = 1;\n"},
		{name: "template literal", src: "const s = `a ${b ? `x{` : '}'} c`;\n"},
		{name: "css", src: ".a { color: red; }\n@media (max-width: 10px) { .b { top: 0; } }\n"},
		{name: "unclosed brace", src: "function f() {\n  if (x) {\n}\n", wantErr: true, wantLine: 1},
		{name: "stray closer", src: "const a = 1;\n}\n", wantErr: true, wantLine: 2},
		{name: "mismatch", src: "const a = [1, 2);\n", wantErr: true, wantLine: 1},
		{name: "unterminated string keeps line count", src: "const s = 'oops\n)\n", wantErr: true, wantLine: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBalance([]byte(tt.src))
			if !tt.wantErr {
				if err != nil {
					t.Errorf("CheckBalance() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrUnbalanced) {
				t.Fatalf("CheckBalance() = %v, want ErrUnbalanced", err)
			}
			var berr *BalanceError
			if !errors.As(err, &berr) {
				t.Fatalf("error %T is not *BalanceError", err)
			}
			if berr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", berr.Line, tt.wantLine, err)
			}
		})
	}
}
