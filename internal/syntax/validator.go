// Package syntax checks patched buffers before they are written: a
// tree-sitter parse for the languages patchkit targets, and a delimiter
// balance scan that works on any C-like source.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"patchkit/internal/logging"
)

// ErrSyntax is wrapped by every parse failure returned from Validate.
var ErrSyntax = errors.New("syntax error")

// Position is a 1-based line and column.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error describes the first error node found in a parse tree.
type Error struct {
	Path     string
	Language string
	Pos      Position
	Missing  bool   // tree-sitter inserted a node that is not in the source
	Node     string // node type, e.g. "ERROR" or the missing token
}

func (e *Error) Error() string {
	kind := "unexpected input"
	if e.Missing {
		kind = fmt.Sprintf("missing %q", e.Node)
	}
	return fmt.Sprintf("%s:%s: %s (%s)", e.Path, e.Pos, kind, e.Language)
}

func (e *Error) Unwrap() error { return ErrSyntax }

// Validator parses buffers with the grammar matching their extension.
type Validator struct {
	languages map[string]language
}

type language struct {
	name    string
	grammar func() *sitter.Language
}

// NewValidator returns a validator for TypeScript, TSX, JavaScript and CSS.
func NewValidator() *Validator {
	ts := language{"typescript", typescript.GetLanguage}
	js := language{"javascript", javascript.GetLanguage}
	return &Validator{
		languages: map[string]language{
			".ts":  ts,
			".mts": ts,
			".cts": ts,
			".tsx": {"tsx", tsx.GetLanguage},
			".js":  js,
			".jsx": js,
			".mjs": js,
			".cjs": js,
			".css": {"css", css.GetLanguage},
		},
	}
}

// Language returns the grammar name used for path, or "" if none.
func (v *Validator) Language(path string) string {
	return v.languages[strings.ToLower(filepath.Ext(path))].name
}

// Supports reports whether path has a known extension.
func (v *Validator) Supports(path string) bool {
	return v.Language(path) != ""
}

// Validate parses content as the language of path. Unknown extensions pass.
// A parse with error or missing nodes returns an *Error.
func (v *Validator) Validate(ctx context.Context, path string, content []byte) error {
	lang, ok := v.languages[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil
	}

	timer := logging.StartTimer(logging.CategorySyntax, "Parse "+filepath.Base(path))
	defer timer.Stop()

	// Parsers are not safe for concurrent use; check runs recipes in parallel.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		logging.SyntaxDebug("%s parsed cleanly as %s", path, lang.name)
		return nil
	}

	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	pt := bad.StartPoint()
	serr := &Error{
		Path:     path,
		Language: lang.name,
		Pos:      Position{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1},
		Missing:  bad.IsMissing(),
		Node:     bad.Type(),
	}
	logging.Syntax("Syntax check failed: %v", serr)
	return serr
}

// firstError walks the tree in document order and returns the first
// ERROR or missing node.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
