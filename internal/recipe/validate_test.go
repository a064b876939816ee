package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	base := func() *Recipe {
		return &Recipe{
			Name:    "r",
			Targets: []string{"src/a.ts"},
			Edits:   []Edit{{Find: "a", Replace: "b"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(r *Recipe)
		field  string
	}{
		{"valid", func(r *Recipe) {}, ""},
		{"missing name", func(r *Recipe) { r.Name = " " }, "name"},
		{"no operations", func(r *Recipe) { r.Edits = nil }, "edits"},
		{"bad on_missing", func(r *Recipe) { r.OnMissing = "ignore" }, "on_missing"},
		{"continue ok", func(r *Recipe) { r.OnMissing = OnMissingContinue }, ""},
		{"edits need targets", func(r *Recipe) { r.Targets = nil }, "targets"},
		{"absolute target", func(r *Recipe) { r.Targets = []string{"/etc/passwd"} }, "targets[0]"},
		{"escaping target", func(r *Recipe) { r.Targets = []string{"../other/a.ts"} }, "targets[0]"},
		{"empty find", func(r *Recipe) { r.Edits[0].Find = "" }, "edits[0].find"},
		{"negative count", func(r *Recipe) { r.Edits[0].Count = -1 }, "edits[0].count"},
		{"bad regex", func(r *Recipe) {
			r.Edits[0].Regex = true
			r.Edits[0].Find = "("
		}, "edits[0].find"},
		{"regex ok", func(r *Recipe) {
			r.Edits[0].Regex = true
			r.Edits[0].Find = `import (\w+)`
		}, ""},
		{"extract without to", func(r *Recipe) {
			r.Extract = []Extract{{Start: "s", End: "e"}}
		}, "extract[0].to"},
		{"extract escaping", func(r *Recipe) {
			r.Extract = []Extract{{Start: "s", End: "e", To: "../x.css"}}
		}, "extract[0].to"},
		{"create without path", func(r *Recipe) { r.Create = []Create{{Content: "x"}} }, "create[0].path"},
		{"remove root", func(r *Recipe) { r.Remove = []Remove{{Path: "./"}} }, "remove[0].path"},
		{"create only needs no targets", func(r *Recipe) {
			r.Targets = nil
			r.Edits = nil
			r.Create = []Create{{Path: "docs/a.md"}}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.mutate(r)
			err := r.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRecipe)
			if err != nil {
				assert.Contains(t, err.Error(), tt.field)
			}
		})
	}
}

func TestEditRegexpCached(t *testing.T) {
	e := &Edit{Find: `a(\d)`, Regex: true}
	re1, err := e.Regexp()
	assert.NoError(t, err)
	re2, _ := e.Regexp()
	assert.Same(t, re1, re2)
}
