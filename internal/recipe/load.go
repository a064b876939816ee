package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"patchkit/internal/logging"
)

// Parse decodes every YAML document in data. source names the origin in errors.
func Parse(data []byte, source string) ([]*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var recipes []*Recipe
	for doc := 1; ; doc++ {
		r := &Recipe{}
		if err := dec.Decode(r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: document %d: %w", source, doc, err)
		}
		if r.isBlank() {
			continue
		}
		r.Source = source
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		recipes = append(recipes, r)
	}
	if err := checkDuplicates(recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// LoadFile loads every recipe in a YAML file.
func LoadFile(path string) ([]*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}
	recipes, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	logging.RecipeDebug("Loaded %d recipe(s) from %s", len(recipes), path)
	return recipes, nil
}

// LoadDir loads *.yaml and *.yml files directly inside dir, sorted by name.
func LoadDir(dir string) ([]*Recipe, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isRecipeFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var all []*Recipe
	for _, name := range names {
		recipes, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		all = append(all, recipes...)
	}
	if err := checkDuplicates(all); err != nil {
		return nil, err
	}
	return all, nil
}

// LoadPaths loads files and directories in argument order.
func LoadPaths(paths ...string) ([]*Recipe, error) {
	var all []*Recipe
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("recipe path: %w", err)
		}
		var recipes []*Recipe
		if info.IsDir() {
			recipes, err = LoadDir(p)
		} else {
			recipes, err = LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
		all = append(all, recipes...)
	}
	if err := checkDuplicates(all); err != nil {
		return nil, err
	}
	logging.Recipe("Loaded %d recipe(s) from %d path(s)", len(all), len(paths))
	return all, nil
}

// Filter keeps recipes whose name is in names, preserving order. Unknown
// names are an error. An empty names list keeps everything.
func Filter(recipes []*Recipe, names []string) ([]*Recipe, error) {
	if len(names) == 0 {
		return recipes, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	var out []*Recipe
	for _, r := range recipes {
		if want[r.Name] {
			out = append(out, r)
			delete(want, r.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown recipe(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Find returns the recipe with the given name, or nil.
func Find(recipes []*Recipe, name string) *Recipe {
	for _, r := range recipes {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func isRecipeFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func checkDuplicates(recipes []*Recipe) error {
	seen := make(map[string]string, len(recipes))
	for _, r := range recipes {
		if prev, ok := seen[r.Name]; ok {
			return fmt.Errorf("%w: %s: name: duplicate (defined in %s and %s)", ErrInvalidRecipe, r.Name, prev, r.Source)
		}
		seen[r.Name] = r.Source
	}
	return nil
}
