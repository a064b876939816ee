// Package diff computes line diffs between the original and patched content
// of a target, using the sergi/go-diff library, and renders them as unified diffs.
package diff

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// Line represents a single line in the diff
type Line struct {
	LineNum int // 1-based; old numbering for context/removed, new numbering for added
	Content string
	Type    LineType
}

// Hunk represents a group of changes
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff represents changes to a single file
type FileDiff struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
}

// Stats returns the number of added and removed lines.
func (d *FileDiff) Stats() (added, removed int) {
	for _, h := range d.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

// Empty reports whether the diff has no hunks.
func (d *FileDiff) Empty() bool {
	return d == nil || len(d.Hunks) == 0
}

// Engine provides diff computation with caching
type Engine struct {
	dmp          *diffmatchpatch.DiffMatchPatch
	contextLines int
	cache        sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a diff engine keeping contextLines of context (<0 means DefaultContext).
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = DefaultContext
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{
		dmp:          dmp,
		contextLines: contextLines,
	}
}

// DefaultEngine is a shared engine with DefaultContext lines of context.
var DefaultEngine = NewEngine(DefaultContext)

// ComputeDiff creates a FileDiff from old and new content strings.
func (e *Engine) ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	fileDiff := &FileDiff{
		OldPath:  oldPath,
		NewPath:  newPath,
		IsNew:    oldContent == "" && newContent != "",
		IsDelete: newContent == "" && oldContent != "",
	}

	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		if cachedDiff, ok := cached.(*FileDiff); ok {
			result := *cachedDiff
			result.OldPath = oldPath
			result.NewPath = newPath
			return &result
		}
	}

	// Line-level reduction avoids newline boundary artifacts.
	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	fileDiff.Hunks = groupIntoHunks(toOperations(diffs), e.contextLines)

	e.cache.Store(key, fileDiff)
	return fileDiff
}

// ComputeDiff is a convenience function using the default engine
func ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return DefaultEngine.ComputeDiff(oldPath, newPath, oldContent, newContent)
}

// ClearCache clears the diff cache
func (e *Engine) ClearCache() {
	e.cache.Range(func(k, _ any) bool {
		e.cache.Delete(k)
		return true
	})
}

// operation is one line with its position in both files.
// oldPos/newPos count the lines of each file consumed before this line.
type operation struct {
	typ     LineType
	oldPos  int
	newPos  int
	content string
}

func toOperations(diffs []diffmatchpatch.Diff) []operation {
	ops := make([]operation, 0)
	oldPos, newPos := 0, 0

	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		lines := strings.Split(d.Text, "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{typ: LineContext, oldPos: oldPos, newPos: newPos, content: line})
				oldPos++
				newPos++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{typ: LineRemoved, oldPos: oldPos, newPos: newPos, content: line})
				oldPos++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{typ: LineAdded, oldPos: oldPos, newPos: newPos, content: line})
				newPos++
			}
		}
	}
	return ops
}

// groupIntoHunks merges changes separated by at most 2*context unchanged
// lines and surrounds each group with up to context lines.
func groupIntoHunks(ops []operation, context int) []Hunk {
	var changes []int
	for i, op := range ops {
		if op.typ != LineContext {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	start := changes[0]
	end := changes[0]
	flush := func() {
		from := start - context
		if from < 0 {
			from = 0
		}
		to := end + context
		if to >= len(ops) {
			to = len(ops) - 1
		}
		hunks = append(hunks, buildHunk(ops[from:to+1]))
	}

	for _, idx := range changes[1:] {
		if idx-end-1 > 2*context {
			flush()
			start = idx
		}
		end = idx
	}
	flush()
	return hunks
}

func buildHunk(ops []operation) Hunk {
	h := Hunk{
		OldStart: ops[0].oldPos + 1,
		NewStart: ops[0].newPos + 1,
		Lines:    make([]Line, 0, len(ops)),
	}
	for _, op := range ops {
		num := op.oldPos + 1
		if op.typ == LineAdded {
			num = op.newPos + 1
		}
		h.Lines = append(h.Lines, Line{LineNum: num, Content: op.content, Type: op.typ})
		if op.typ != LineAdded {
			h.OldCount++
		}
		if op.typ != LineRemoved {
			h.NewCount++
		}
	}
	// Unified format points at the preceding line for empty ranges.
	if h.OldCount == 0 {
		h.OldStart--
	}
	if h.NewCount == 0 {
		h.NewStart--
	}
	return h
}

func hash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
