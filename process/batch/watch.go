package batch

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"invoicescan/process/report"
)

// Watch runs the batch once, then re-runs it whenever recognized images in the
// input directory are created, rewritten, removed or renamed and have been
// quiet for the debounce period. It returns when ctx is done. Write errors of
// individual re-runs are logged so the watcher keeps going.
func (p *Processor) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(p.opts.InputDir); err != nil {
		return err
	}

	if err := p.rerun(ctx); err != nil {
		return err
	}
	p.log.Infof("Watching %s (debounce %s) ...", p.opts.InputDir, debounce)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !IsSupportedExt(filepath.Base(ev.Name)) {
				continue
			}
			p.log.Debugf("watch event %s %s", ev.Op, ev.Name)
			pending[ev.Name] = time.Now()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.log.Warnf("watch error: %v", err)
		case now := <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			settled := true
			for _, t := range pending {
				if now.Sub(t) < debounce {
					settled = false
					break
				}
			}
			if !settled {
				continue
			}
			p.log.Infof("%d file(s) changed, re-running", len(pending))
			pending = map[string]time.Time{}
			if err := p.rerun(ctx); err != nil {
				return err
			}
		}
	}
}

// rerun runs the batch and swallows errors the watcher can outlive.
func (p *Processor) rerun(ctx context.Context) error {
	_, err := p.Run(ctx)
	var we *report.WriteError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &we):
		p.log.Errorf("%v", err)
		return nil
	case ctx.Err() != nil:
		return nil
	}
	return err
}
