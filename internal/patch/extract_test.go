package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInsertImport(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    string
		want    string
	}{
		{
			name:    "after multi-line import and directive",
			content: "'use client';\n// header\nimport React from 'react';\nimport {\n  useState,\n} from 'react';\n\nexport const A = 1;\n",
			line:    "import './A.css';",
			want:    "'use client';\n// header\nimport React from 'react';\nimport {\n  useState,\n} from 'react';\nimport './A.css';\n\nexport const A = 1;\n",
		},
		{
			name:    "no imports",
			content: "const a = 1;\n",
			line:    "import './x.css';",
			want:    "import './x.css';\nconst a = 1;\n",
		},
		{
			name:    "last line without newline",
			content: "import a from 'a';",
			line:    "import './x.css';",
			want:    "import a from 'a';\nimport './x.css';\n",
		},
		{
			name:    "css import",
			content: "@import './base.css';\n\n.app {}\n",
			line:    "@import './Grid.css';",
			want:    "@import './base.css';\n@import './Grid.css';\n\n.app {}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := insertImport(tt.content, tt.line)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("insertImport mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrimBlockAndAppend(t *testing.T) {
	if got := trimBlock("\n.a {}\n  "); got != ".a {}" {
		t.Errorf("trimBlock = %q", got)
	}
	if got := appendBlock("", ".a {}"); got != ".a {}\n" {
		t.Errorf("appendBlock(empty) = %q", got)
	}
	if got := appendBlock(".x {}", ".a {}"); got != ".x {}\n\n.a {}\n" {
		t.Errorf("appendBlock = %q", got)
	}
}
