package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"patchkit/internal/patch"
	"patchkit/internal/recipe"
)

// Flags shared by the one-off edit commands.
var (
	adhocFiles    []string
	adhocDryRun   bool
	adhocDiff     bool
	adhocNoBackup bool
	adhocForce    bool

	replaceFrom  string
	replaceTo    string
	replaceRegex bool
	replaceAll   bool
	replaceCount int

	extractStart  string
	extractEnd    string
	extractTo     string
	extractImport string
)

var replaceCmd = &cobra.Command{
	Use:   "replace --file F --from X [--to Y]",
	Short: "Replace text in files without writing a recipe",
	Long: `Runs a single find/replace edit through the patch engine, with the same
idempotence, backup and journal behavior as a recipe.

By default the pattern must occur exactly once. Use --all to replace every
occurrence or --count N to require exactly N.

Examples:
  patchkit replace --file src/App.tsx --from "useState(0)" --to "useState(1)"
  patchkit replace --file "src/**/*.ts" --from "foo\(" --to "bar(" --regex --all`,
	RunE: runReplace,
}

var extractCmd = &cobra.Command{
	Use:   "extract --file F --start S --end E --to NAME",
	Short: "Move a marked block into a sibling file and import it",
	Long: `Cuts the text between the --start and --end markers out of --file, appends
it to NAME in the same directory and adds an import line to --file.

The default import is: import './NAME';`,
	RunE: runExtract,
}

func init() {
	for _, c := range []*cobra.Command{replaceCmd, extractCmd} {
		c.Flags().StringSliceVar(&adhocFiles, "file", nil, "Target file or glob (repeatable)")
		c.Flags().BoolVar(&adhocDryRun, "dry-run", false, "Show what would change without writing")
		c.Flags().BoolVar(&adhocDiff, "diff", false, "Print a unified diff")
		c.Flags().BoolVar(&adhocNoBackup, "no-backup", false, "Do not copy originals before writing")
		c.Flags().BoolVar(&adhocForce, "force", false, "Write even when post-edit checks fail")
		_ = c.MarkFlagRequired("file")
	}

	replaceCmd.Flags().StringVar(&replaceFrom, "from", "", "Text (or regex) to find")
	replaceCmd.Flags().StringVar(&replaceTo, "to", "", "Replacement text")
	replaceCmd.Flags().BoolVar(&replaceRegex, "regex", false, "Treat --from as a regular expression")
	replaceCmd.Flags().BoolVar(&replaceAll, "all", false, "Replace every occurrence")
	replaceCmd.Flags().IntVar(&replaceCount, "count", 0, "Require exactly this many occurrences")
	_ = replaceCmd.MarkFlagRequired("from")

	extractCmd.Flags().StringVar(&extractStart, "start", "", "Start marker")
	extractCmd.Flags().StringVar(&extractEnd, "end", "", "End marker")
	extractCmd.Flags().StringVar(&extractTo, "to", "", "Sibling file name, relative to the target")
	extractCmd.Flags().StringVar(&extractImport, "import", "", "Import line to add (default: import './NAME';)")
	_ = extractCmd.MarkFlagRequired("start")
	_ = extractCmd.MarkFlagRequired("end")
	_ = extractCmd.MarkFlagRequired("to")
}

// targetsFor converts --file values to workspace-relative slash paths.
func (e *env) targetsFor(files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("--file is required")
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			out = append(out, filepath.ToSlash(f))
			continue
		}
		rel, err := filepath.Rel(e.workspace, f)
		if err != nil || !recipe.Within(e.workspace, f) {
			return nil, fmt.Errorf("%s: %w", f, patch.ErrOutsideWorkspace)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

func runReplace(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	targets, err := e.targetsFor(adhocFiles)
	if err != nil {
		return err
	}
	r := &recipe.Recipe{
		Name:    "replace",
		Targets: targets,
		Edits: []recipe.Edit{{
			Find:    replaceFrom,
			Replace: replaceTo,
			Regex:   replaceRegex,
			All:     replaceAll,
			Count:   replaceCount,
		}},
	}
	return e.runAdhoc(cmd, r)
}

func runExtract(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	targets, err := e.targetsFor(adhocFiles)
	if err != nil {
		return err
	}
	imp := extractImport
	if imp == "" {
		imp = fmt.Sprintf("import './%s';", extractTo)
	}
	r := &recipe.Recipe{
		Name:    "extract",
		Targets: targets,
		Extract: []recipe.Extract{{
			Start:  extractStart,
			End:    extractEnd,
			To:     extractTo,
			Import: imp,
		}},
	}
	return e.runAdhoc(cmd, r)
}

// runAdhoc validates and applies a recipe built from flags.
func (e *env) runAdhoc(cmd *cobra.Command, r *recipe.Recipe) error {
	if err := r.Validate(); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	runID := patch.NewRunID()
	finish, err := e.beginRun(ctx, runID, r.Name, adhocDryRun)
	if err != nil {
		return err
	}
	eng, err := e.newEngine(engineFlags{
		runID:    runID,
		dryRun:   adhocDryRun,
		noBackup: adhocNoBackup,
		force:    adhocForce,
	})
	if err != nil {
		finish(string(patch.StatusFailed))
		return err
	}

	rep, err := eng.Apply(ctx, r)
	p := newPrinter(cmd.OutOrStdout(), e.styles, adhocDiff)
	if rep != nil {
		p.report(r, rep)
	}
	if err != nil {
		finish(string(patch.StatusFailed))
		return err
	}
	finish(string(rep.Status))
	if !adhocDryRun {
		e.pruneBackups()
	}
	if rep.Failed() {
		return errFailed
	}
	return nil
}
