package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 150 * time.Millisecond

// runWatch analyzes once, then again after every .cue change under the
// specs directory, until ctx is canceled. Analysis failures are reported
// and watching continues.
func runWatch(ctx context.Context, opts *AnalyzeOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(specsDir)
	if err != nil || !info.IsDir() {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("--watch needs a specs directory: %s", specsDir))
	}

	rerun := func() {
		if err := runAnalyze(ctx, opts, specsDir, cmd); err != nil {
			slog.Warn("analysis failed", "dir", specsDir, "error", err)
		}
	}
	rerun()

	err = watchSpecs(ctx, specsDir, func(path string) {
		formatter.VerboseLog("Change detected: %s", path)
		rerun()
	})
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("watching %s: %v", specsDir, err))
	}
	return nil
}

// watchSpecs calls onChange with the last changed path once events for
// .cue files under dir settle. Directories created while watching are
// added. Returns nil when ctx is canceled.
func watchSpecs(ctx context.Context, dir string, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addTree(w, dir); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending string
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						slog.Warn("watch directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if filepath.Ext(ev.Name) != ".cue" || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending = ev.Name
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange(pending)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "dir", dir, "error", err)
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
