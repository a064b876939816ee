package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolveTargets expands the recipe's targets against workspace and returns
// absolute, deduplicated, sorted paths. Literal paths are returned even when
// they do not exist so the engine can report them missing. A glob that
// matches nothing contributes nothing.
//
// Glob matches inside any exclude directory (absolute, or relative to
// workspace) are dropped. Literal targets are never excluded.
func (r *Recipe) ResolveTargets(workspace string, exclude ...string) ([]string, error) {
	root, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	fsys := os.DirFS(root)

	skip := make([]string, 0, len(exclude))
	for _, x := range exclude {
		if x == "" {
			continue
		}
		if !filepath.IsAbs(x) {
			x = filepath.Join(root, x)
		}
		skip = append(skip, filepath.Clean(x))
	}
	excluded := func(rel string) bool {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		for _, x := range skip {
			if Within(x, abs) {
				return true
			}
		}
		return false
	}

	seen := make(map[string]bool)
	var out []string
	add := func(rel string) error {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if !Within(root, abs) {
			return fmt.Errorf("%w: %s: target %q escapes the workspace", ErrInvalidRecipe, r.Name, rel)
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
		return nil
	}

	for _, target := range r.Targets {
		pattern := filepath.ToSlash(filepath.Clean(filepath.FromSlash(target)))
		if !hasMeta(pattern) {
			if err := add(pattern); err != nil {
				return nil, err
			}
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %s: bad glob %q", ErrInvalidRecipe, r.Name, target)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", target, err)
		}
		for _, m := range matches {
			if excluded(m) {
				continue
			}
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Within reports whether path is root or lies below it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}
