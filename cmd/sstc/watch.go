package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// watch calls rebuild after every change to one of the inputs until ctx is
// done. The parent directories are watched rather than the files so that
// editors which replace a file on save keep triggering rebuilds.
func watch(ctx context.Context, inputs []string, rebuild func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot start file watcher")
	}
	defer w.Close()

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return errors.Wrapf(err, "cannot watch '%s'", in)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return errors.Wrapf(err, "cannot watch '%s'", dir)
		}
	}
	logrus.Warnf("watching %d file(s), press Ctrl-C to stop", len(targets))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !targets[abs] {
				continue
			}
			logrus.WithField("file", ev.Name).Infof("%s, rebuilding", ev.Op)
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).Warn("file watcher error")
		}
	}
}
