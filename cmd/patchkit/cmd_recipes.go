package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"patchkit/internal/config"
	"patchkit/internal/fileops"
	"patchkit/internal/recipe"
)

var initForce bool

var listCmd = &cobra.Command{
	Use:   "list [recipe files or dirs...]",
	Short: "List recipes with their targets and when they last applied",
	RunE:  runList,
}

var explainCmd = &cobra.Command{
	Use:   "explain NAME [recipe files or dirs...]",
	Short: "Show a recipe's description, operations and manual fallback",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExplain,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .patchkit/config.yaml and the recipes directory",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	recipes, err := e.loadRecipes(args, nil)
	if err != nil {
		return err
	}
	store, err := e.openJournal()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTARGETS\tOPS\tLAST APPLIED\tDESCRIPTION")
	for _, r := range recipes {
		targets := "-"
		if len(r.Targets) > 0 {
			if resolved, err := r.ResolveTargets(e.workspace, e.stateDirs()...); err != nil {
				targets = "error"
			} else {
				targets = fmt.Sprintf("%d", len(resolved))
			}
		}
		last := "never"
		if store != nil {
			c, ok, err := store.LastApplied(ctx, r.Name, "")
			if err != nil {
				return err
			}
			if ok {
				last = c.CreatedAt.Local().Format(time.DateTime)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Name, targets, r.OpCount(), last, firstLine(r.Description))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func runExplain(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	recipes, err := e.loadRecipes(args[1:], nil)
	if err != nil {
		return err
	}
	r := recipe.Find(recipes, args[0])
	if r == nil {
		return fmt.Errorf("unknown recipe %q", args[0])
	}

	p := newPrinter(cmd.OutOrStdout(), e.styles, false)
	p.printf("%s", p.markdown.Render(explainMarkdown(r)))
	return nil
}

// explainMarkdown describes a recipe as markdown.
func explainMarkdown(r *recipe.Recipe) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.Name)
	if d := strings.TrimSpace(r.Description); d != "" {
		sb.WriteString(d + "\n\n")
	}
	fmt.Fprintf(&sb, "Source: `%s`, on missing pattern: **%s**", r.Source, r.Mode())
	if r.RestoreFirst {
		sb.WriteString(", starts from git HEAD")
	}
	sb.WriteString("\n\n")

	if len(r.Targets) > 0 {
		sb.WriteString("## Targets\n\n")
		for _, t := range r.Targets {
			fmt.Fprintf(&sb, "- `%s`\n", t)
		}
		sb.WriteString("\n")
	}
	if len(r.Edits) > 0 {
		sb.WriteString("## Edits\n\n")
		for i := range r.Edits {
			ed := &r.Edits[i]
			kind := "literal"
			if ed.Regex {
				kind = "regex"
			}
			fmt.Fprintf(&sb, "%d. %s (%s", i+1, ed.Label(i), kind)
			switch {
			case ed.All:
				sb.WriteString(", every occurrence")
			case ed.Count > 0:
				fmt.Fprintf(&sb, ", exactly %d", ed.Count)
			}
			if ed.Optional {
				sb.WriteString(", optional")
			}
			sb.WriteString(")\n")
		}
		sb.WriteString("\n")
	}
	if len(r.Extract) > 0 {
		sb.WriteString("## Extract\n\n")
		for i := range r.Extract {
			x := &r.Extract[i]
			fmt.Fprintf(&sb, "%d. %s: into `%s`", i+1, x.Label(i), x.To)
			if x.Import != "" {
				fmt.Fprintf(&sb, ", adding `%s`", x.Import)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if len(r.Create) > 0 || len(r.Remove) > 0 {
		sb.WriteString("## Files\n\n")
		for _, c := range r.Create {
			fmt.Fprintf(&sb, "- create `%s`\n", c.Path)
		}
		for _, rm := range r.Remove {
			fmt.Fprintf(&sb, "- remove `%s`\n", rm.Path)
		}
		sb.WriteString("\n")
	}
	if !r.Checks.Empty() {
		sb.WriteString("## Checks\n\n")
		for _, s := range r.Checks.Expect {
			fmt.Fprintf(&sb, "- expect `%s`\n", s)
		}
		for _, s := range r.Checks.Forbid {
			fmt.Fprintf(&sb, "- forbid `%s`\n", s)
		}
		if r.Checks.Balanced {
			sb.WriteString("- balanced delimiters\n")
		}
		if r.Checks.Syntax {
			sb.WriteString("- syntax\n")
		}
		sb.WriteString("\n")
	}
	if f := strings.TrimSpace(r.Fallback); f != "" {
		sb.WriteString("## Manual fallback\n\n" + f + "\n")
	}
	return sb.String()
}

const stateGitignore = "backups/\njournal.db*\nlogs/\n"

func runInit(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	out := cmd.OutOrStdout()
	path := configPath
	if path == "" {
		path = config.DefaultPath(e.workspace)
	}
	if fileops.Exists(path) && !initForce {
		fmt.Fprintf(out, "⏭️ %s already exists (use --force to overwrite)\n", path)
	} else {
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ wrote %s\n", path)
	}

	ignore := filepath.Join(e.workspace, config.DirName, ".gitignore")
	if !fileops.Exists(ignore) {
		if err := fileops.WriteAtomic(ignore, []byte(stateGitignore), 0644); err != nil {
			return err
		}
	}

	dir := config.Resolve(e.workspace, e.cfg.RecipesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create recipes dir: %w", err)
	}
	fmt.Fprintf(out, "✅ recipes go in %s\n", dir)
	return nil
}
