package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patchkit/internal/recipe"
	"patchkit/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [recipe files or dirs...]",
	Short: "Re-check recipes whenever a recipe or one of its targets changes",
	Long: `Watches the recipe files and every target they resolve to. When changes
settle, all recipes are checked again (read-only) and a status line per
recipe is printed. Runs until interrupted; --timeout does not apply.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before re-checking (default: watch.debounce from config)")
}

// watchSession reloads recipes and re-checks them for the watcher.
type watchSession struct {
	env     *env
	args    []string
	p       *printer
	recipes []*recipe.Recipe
	sources map[string]bool
}

// reload loads the recipes and returns every file worth watching.
func (s *watchSession) reload() ([]string, error) {
	recipes, err := s.env.loadRecipes(s.args, nil)
	if err != nil {
		return nil, err
	}
	s.recipes = recipes
	s.sources = make(map[string]bool)

	var files []string
	for _, r := range recipes {
		if r.Source != "" {
			src, err := filepath.Abs(r.Source)
			if err != nil {
				return nil, err
			}
			if !s.sources[src] {
				s.sources[src] = true
				files = append(files, src)
			}
		}
		targets, err := r.ResolveTargets(s.env.workspace, s.env.stateDirs()...)
		if err != nil {
			return nil, err
		}
		files = append(files, targets...)
	}
	return files, nil
}

func (s *watchSession) check(ctx context.Context) {
	results, err := s.env.planAll(ctx, s.recipes)
	if err != nil {
		s.p.printf("%s\n", s.p.styles.Fail.Render("❌ "+err.Error()))
		return
	}
	sum := newSummary()
	for _, res := range results {
		s.p.statusLine(res.recipe, res.report)
		sum.add(res.report)
	}
	s.p.summary(sum)
}

func runWatch(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	s := &watchSession{env: e, args: args, p: newPrinter(cmd.OutOrStdout(), e.styles, false)}
	files, err := s.reload()
	if err != nil {
		return err
	}

	debounce := watchDebounce
	if debounce <= 0 {
		debounce = e.cfg.GetDebounce()
	}

	var w *watch.Watcher
	w, err = watch.New(debounce, func(ctx context.Context, paths []string) {
		s.p.printf("\n%s %d file(s) changed\n", s.p.styles.Header.Render("🔄"), len(paths))
		for _, path := range paths {
			if !s.sources[path] {
				continue
			}
			files, err := s.reload()
			if err != nil {
				s.p.printf("%s\n", s.p.styles.Fail.Render("❌ "+err.Error()))
				return
			}
			if err := w.SetFiles(files); err != nil {
				logger.Warn("Updating watched files", zap.Error(err))
			}
			break
		}
		s.check(ctx)
	})
	if err != nil {
		return err
	}
	if err := w.SetFiles(files); err != nil {
		w.Stop()
		return err
	}

	s.check(ctx)
	s.p.printf("\n👀 Watching %d file(s); press Ctrl+C to stop\n", len(w.Files()))

	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	<-ctx.Done()
	w.Stop()

	stats := w.Stats()
	logger.Debug("Watcher stopped", zap.Int("events", stats.Events), zap.Int("batches", stats.Batches))
	fmt.Fprintln(cmd.OutOrStdout(), "Stopped watching.")
	return nil
}
