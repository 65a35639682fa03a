package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/glossa/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [path]...",
	Aliases: []string{"w"},
	Short:   "Keep localized outputs current as files change",
	Long: `Watch the content and asset directories. Every change drops the cached
results and dictionaries that depend on the changed file. Resources named
on the command line are localized for every locale of their group first;
after each change the ones affected are regenerated.

Examples:
  glossa watch                              # Invalidate caches only
  glossa watch site/index.xml docs/a.xml    # Keep these outputs current
  glossa watch site/index.xml --diagnose -v`,
	RunE: runWatch,
}

var (
	watchFlags *StandardFlags
	watchDelay time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "locale", "generate", "output")
	watchCmd.Flags().DurationVar(&watchDelay, "delay", 300*time.Millisecond, "Debounce delay for file changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.ValidateFlags(); err != nil {
		return err
	}

	env, err := newEnvironment()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	fileWatcher, err := newContentWatcher(ctx, w, env, args)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	if len(args) > 0 {
		all := *watchFlags
		all.All = len(all.Locales) == 0
		if err := localize(ctx, w, env.orchestrator, args, &all); err != nil {
			env.logger.Warn(ctx, err, "Initial localization failed")
		}
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	if !watchFlags.Quiet {
		fmt.Fprintln(w, "Watching for changes... (Press Ctrl+C to stop)")
	}

	<-ctx.Done()
	return nil
}

// newContentWatcher builds a watcher over the content and asset roots with
// the handlers the watch command runs on every batch.
func newContentWatcher(ctx context.Context, w io.Writer, env *environment, paths []string) (*watcher.FileWatcher, error) {
	fileWatcher, err := watcher.NewFileWatcher(watchDelay, env.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fileWatcher.AddFilter(watcher.ContentFilter)
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NoOutputFilter(env.config.Content.Output))

	// Refreshing reads the cached keys, so it has to run before they are
	// invalidated.
	if len(paths) > 0 {
		fileWatcher.AddHandler(refreshHandler(ctx, w, env))
	}
	fileWatcher.AddHandler(dictionaryHandler(ctx, env))
	fileWatcher.AddHandler(watcher.InvalidateHandler(env.orchestrator.Results(), env.logger))

	roots := []string{env.config.Content.Root}
	if env.config.Content.Assets != "" {
		roots = append(roots, env.config.Content.Assets)
	}
	if env.config.Template != "" {
		roots = append(roots, filepath.Dir(env.config.Template))
	}
	for _, root := range roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			env.logger.Debug(ctx, "Not watching missing directory", "path", root)
			continue
		}
		if err := fileWatcher.AddRecursive(root); err != nil {
			fileWatcher.Stop()
			return nil, fmt.Errorf("failed to watch %s: %w", root, err)
		}
		env.logger.Info(ctx, "Watching", "path", root)
	}
	return fileWatcher, nil
}

// dictionaryHandler drops the merged dictionaries of every group one of
// whose dictionary files changed, including files that did not exist when
// the dictionaries were merged.
func dictionaryHandler(ctx context.Context, env *environment) watcher.ChangeHandler {
	return func(events []watcher.ChangeEvent) error {
		changed := make(map[string]bool, len(events))
		for _, e := range events {
			changed[absPath(e.Path)] = true
		}

		dictionaries := env.orchestrator.Dictionaries()
		for _, g := range env.config.Groups {
			if g.Dictionary == "" {
				continue
			}
			locales := g.Locales
			if len(locales) == 0 {
				locales = env.config.LocaleNames()
			}
			if groupChanged(dictionaries.Merger().Candidates, g.Name, locales, changed) {
				dictionaries.Invalidate(g.Name)
				env.logger.Info(ctx, "Dictionaries changed", "group", g.Name)
			}
		}
		return nil
	}
}

func groupChanged(candidates func(group, locale string) ([]string, error), group string, locales []string, changed map[string]bool) bool {
	for _, l := range locales {
		files, err := candidates(group, l)
		if err != nil {
			continue
		}
		for _, f := range files {
			if changed[absPath(f)] {
				return true
			}
		}
	}
	return false
}

// refreshHandler regenerates every cached result a change made stale.
func refreshHandler(ctx context.Context, w io.Writer, env *environment) watcher.ChangeHandler {
	return func(events []watcher.ChangeEvent) error {
		if watchFlags.Verbose {
			for _, e := range events {
				fmt.Fprintf(w, "%s: %s\n", e.Type, e.Path)
			}
		}

		results, err := env.orchestrator.Refresh(ctx)
		regenerated := results[:0]
		for _, r := range results {
			if r.Regenerated {
				regenerated = append(regenerated, r)
			}
		}
		if len(regenerated) > 0 {
			if werr := writeResults(w, watchFlags, regenerated); werr != nil {
				return werr
			}
		}
		if err != nil {
			env.logger.Error(ctx, err, "Regeneration failed")
		}
		return nil
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
