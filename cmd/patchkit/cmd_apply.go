package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"patchkit/internal/config"
	"patchkit/internal/patch"
	"patchkit/internal/recipe"
)

var (
	applyDryRun       bool
	applyDiff         bool
	applyNoBackup     bool
	applyForce        bool
	applyRestoreFirst bool
	applyKeepGoing    bool
	applyOnly         []string

	checkDiff bool
	checkOnly []string
)

var applyCmd = &cobra.Command{
	Use:   "apply [recipe files or dirs...]",
	Short: "Apply recipes to the workspace",
	Long: `Loads recipes (default: recipes_dir from the config) and applies them in order.

Each recipe is evaluated in memory first. A recipe that fails writes nothing
unless it sets on_missing: continue, in which case the edits that succeeded
are written and the recipe is reported as partial.

Examples:
  patchkit apply
  patchkit apply recipes/deck-builder.yaml --dry-run --diff
  patchkit apply --only fix-search,fix-sort --keep-going`,
	RunE: runApply,
}

var checkCmd = &cobra.Command{
	Use:   "check [recipe files or dirs...]",
	Short: "Report what apply would do without writing anything",
	Long: `Plans every recipe concurrently and prints one status line per recipe.
Exits 1 when any recipe would fail.`,
	RunE: runCheck,
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Evaluate recipes without writing files, backups or journal rows")
	applyCmd.Flags().BoolVar(&applyDiff, "diff", false, "Print a unified diff of every change")
	applyCmd.Flags().BoolVar(&applyNoBackup, "no-backup", false, "Do not copy originals before writing")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "Write even when post-edit checks fail")
	applyCmd.Flags().BoolVar(&applyRestoreFirst, "restore-first", false, "Start every target from its git HEAD content")
	applyCmd.Flags().BoolVar(&applyKeepGoing, "keep-going", false, "Continue with the next recipe after a failure")
	applyCmd.Flags().StringSliceVar(&applyOnly, "only", nil, "Apply only the named recipes")

	checkCmd.Flags().BoolVar(&checkDiff, "diff", false, "Print the full report and diff for every recipe")
	checkCmd.Flags().StringSliceVar(&checkOnly, "only", nil, "Check only the named recipes")
}

// loadRecipes loads recipes from args, or from recipes_dir when args is empty.
func (e *env) loadRecipes(args, only []string) ([]*recipe.Recipe, error) {
	paths := args
	if len(paths) == 0 {
		paths = []string{config.Resolve(e.workspace, e.cfg.RecipesDir)}
	}
	recipes, err := recipe.LoadPaths(paths...)
	if err != nil {
		return nil, err
	}
	recipes, err = recipe.Filter(recipes, only)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return nil, fmt.Errorf("no recipes found in %s", strings.Join(paths, ", "))
	}
	return recipes, nil
}

func recipeNames(recipes []*recipe.Recipe) string {
	names := make([]string, len(recipes))
	for i, r := range recipes {
		names[i] = r.Name
	}
	return strings.Join(names, ",")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	recipes, err := e.loadRecipes(args, applyOnly)
	if err != nil {
		return err
	}

	runID := patch.NewRunID()
	finish, err := e.beginRun(ctx, runID, "apply "+recipeNames(recipes), applyDryRun)
	if err != nil {
		return err
	}
	eng, err := e.newEngine(engineFlags{
		runID:        runID,
		dryRun:       applyDryRun,
		noBackup:     applyNoBackup,
		force:        applyForce,
		restoreFirst: applyRestoreFirst,
	})
	if err != nil {
		finish(string(patch.StatusFailed))
		return err
	}
	logger.Info("Applying recipes", zap.String("run", runID), zap.Int("recipes", len(recipes)), zap.Bool("dry_run", applyDryRun))

	p := newPrinter(cmd.OutOrStdout(), e.styles, applyDiff)
	sum := newSummary()
	for i, r := range recipes {
		rep, err := eng.Apply(ctx, r)
		if rep != nil {
			p.report(r, rep)
			sum.add(rep)
		}
		if err != nil {
			finish(string(patch.StatusFailed))
			return fmt.Errorf("recipe %s: %w", r.Name, err)
		}
		if rep.Failed() && !applyKeepGoing {
			sum.skipped = len(recipes) - i - 1
			break
		}
	}
	p.summary(sum)
	finish(sum.status())

	if !applyDryRun {
		e.pruneBackups()
		if sum.counts[patch.StatusOK]+sum.counts[patch.StatusPartial] > 0 {
			p.printf("Run %s (undo with: patchkit undo %s)\n", runID, shortID(runID))
		}
	}
	if sum.failed() {
		return errFailed
	}
	return nil
}

// planned is one recipe's dry-run result.
type planned struct {
	recipe *recipe.Recipe
	report *patch.Report
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	recipes, err := e.loadRecipes(args, checkOnly)
	if err != nil {
		return err
	}
	results, err := e.planAll(ctx, recipes)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout(), e.styles, checkDiff)
	sum := newSummary()
	for _, res := range results {
		if checkDiff {
			p.report(res.recipe, res.report)
		} else {
			p.statusLine(res.recipe, res.report)
		}
		sum.add(res.report)
	}
	p.summary(sum)
	if sum.failed() {
		return errFailed
	}
	return nil
}

// planAll plans every recipe concurrently, one engine per recipe, and
// returns the reports in recipe order.
func (e *env) planAll(ctx context.Context, recipes []*recipe.Recipe) ([]planned, error) {
	results := make([]planned, len(recipes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, r := range recipes {
		g.Go(func() error {
			eng, err := e.newEngine(engineFlags{dryRun: true})
			if err != nil {
				return err
			}
			rep, err := eng.Plan(gctx, r)
			if err != nil {
				return fmt.Errorf("recipe %s: %w", r.Name, err)
			}
			results[i] = planned{recipe: r, report: rep}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// shortID abbreviates a run id for display; history and undo accept prefixes.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
