// Package autosave coalesces rapid notebook edits into one write per file
// after a quiet period.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
	"github.com/xxxsen/sqlnb/internal/sqlnbfile"
)

const (
	defaultDelay       = 2000 * time.Millisecond
	defaultSaveTimeout = 10 * time.Second
	closeConcurrency   = 4
)

type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSaving  State = "saving"
)

// Saver is the write side of sqlnbfile.Handler.
type Saver interface {
	Save(ctx context.Context, path string, nb *model.Notebook, results model.Results) sqlnbfile.Result
}

type snapshot struct {
	seq     uint64
	nb      *model.Notebook
	results model.Results
}

type entry struct {
	gen     uint64
	timer   *time.Timer
	pending *snapshot
	active  int

	saveMu  sync.Mutex
	written uint64
	dropped uint64
}

type AutoSaver struct {
	saver       Saver
	delay       time.Duration
	saveTimeout time.Duration
	onSaved     func(key string, res sqlnbfile.Result)

	mu       sync.Mutex
	entries  map[string]*entry
	seq      uint64
	closed   bool
	inflight sync.WaitGroup
}

type Option func(*AutoSaver)

func WithDelay(d time.Duration) Option {
	return func(a *AutoSaver) {
		if d > 0 {
			a.delay = d
		}
	}
}

func WithSaveTimeout(d time.Duration) Option {
	return func(a *AutoSaver) {
		if d > 0 {
			a.saveTimeout = d
		}
	}
}

// WithOnSaved registers a callback run after every completed write,
// debounced or forced.
func WithOnSaved(fn func(key string, res sqlnbfile.Result)) Option {
	return func(a *AutoSaver) {
		a.onSaved = fn
	}
}

func New(saver Saver, opts ...Option) *AutoSaver {
	a := &AutoSaver{
		saver:       saver,
		delay:       defaultDelay,
		saveTimeout: defaultSaveTimeout,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AutoSaver) Delay() time.Duration {
	return a.delay
}

// ScheduleSave snapshots nb and results and (re)arms the quiet period for
// key. Only the last snapshot inside a quiet period is written.
func (a *AutoSaver) ScheduleSave(key string, nb *model.Notebook, results model.Results) error {
	if nb == nil {
		return fmt.Errorf("notebook is required: %w", appErr.ErrInvalid)
	}
	snap := &snapshot{nb: nb.Clone(), results: results.Clone()}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return appErr.ErrClosed
	}
	e := a.entryLocked(key)
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.pending = snap
	e.timer = time.AfterFunc(a.delay, func() {
		a.fire(key, gen)
	})
	return nil
}

// CancelSave drops the pending snapshot for key, if any.
func (a *AutoSaver) CancelSave(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	if !ok {
		return
	}
	a.disarmLocked(e)
	a.releaseLocked(key, e)
}

// Discard drops the pending snapshot for key and waits for a write already
// in flight to finish. Snapshots taken before the call are never written.
func (a *AutoSaver) Discard(key string) {
	a.mu.Lock()
	e, ok := a.entries[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	a.disarmLocked(e)
	upTo := a.seq
	a.releaseLocked(key, e)
	a.mu.Unlock()

	e.saveMu.Lock()
	if upTo > e.dropped {
		e.dropped = upTo
	}
	e.saveMu.Unlock()
}

// ForceSave cancels the pending timer for key and writes nb right away.
func (a *AutoSaver) ForceSave(ctx context.Context, key string, nb *model.Notebook, results model.Results) sqlnbfile.Result {
	if nb == nil {
		err := fmt.Errorf("notebook is required: %w", appErr.ErrInvalid)
		return sqlnbfile.Result{Errors: appErr.Messages(err), Err: err}
	}
	snap := &snapshot{nb: nb.Clone(), results: results.Clone()}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return sqlnbfile.Result{Errors: appErr.Messages(appErr.ErrClosed), Err: appErr.ErrClosed}
	}
	e := a.entryLocked(key)
	a.disarmLocked(e)
	a.takeLocked(e, snap)
	a.mu.Unlock()

	return a.write(ctx, key, e, snap)
}

func (a *AutoSaver) State(key string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	switch {
	case !ok:
		return StateIdle
	case e.pending != nil:
		return StatePending
	case e.active > 0:
		return StateSaving
	}
	return StateIdle
}

// Close flushes every pending snapshot, waits for in flight writes and
// rejects later schedules. Flush failures are joined into the returned error.
func (a *AutoSaver) Close(ctx context.Context) error {
	type flush struct {
		key  string
		e    *entry
		snap *snapshot
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	flushes := make([]flush, 0, len(a.entries))
	for key, e := range a.entries {
		snap := e.pending
		a.disarmLocked(e)
		if snap == nil {
			continue
		}
		a.takeLocked(e, snap)
		flushes = append(flushes, flush{key: key, e: e, snap: snap})
	}
	a.mu.Unlock()

	errs := make([]error, len(flushes))
	var g errgroup.Group
	g.SetLimit(closeConcurrency)
	for i, f := range flushes {
		g.Go(func() error {
			if res := a.write(ctx, f.key, f.e, f.snap); !res.Success {
				errs[i] = fmt.Errorf("flush %s: %w", f.key, res.Err)
			}
			return nil
		})
	}
	_ = g.Wait()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

func (a *AutoSaver) fire(key string, gen uint64) {
	a.mu.Lock()
	e, ok := a.entries[key]
	if !ok || a.closed || e.gen != gen || e.pending == nil {
		a.mu.Unlock()
		return
	}
	snap := e.pending
	e.pending = nil
	e.timer = nil
	a.takeLocked(e, snap)
	a.mu.Unlock()

	res := a.write(context.Background(), key, e, snap)
	if !res.Success {
		logutil.GetLogger(context.Background()).Error("auto save failed",
			zap.String("file", key), zap.Strings("errors", res.Errors), zap.Error(res.Err))
	}
}

// write serialises saves for one key. A snapshot older than the last one
// written is skipped so a slow debounced save never overwrites a newer
// forced one.
func (a *AutoSaver) write(ctx context.Context, key string, e *entry, snap *snapshot) sqlnbfile.Result {
	defer func() {
		a.mu.Lock()
		e.active--
		a.releaseLocked(key, e)
		a.mu.Unlock()
		a.inflight.Done()
	}()

	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if snap.seq < e.written || snap.seq <= e.dropped {
		return sqlnbfile.Result{Success: true}
	}
	ctx, cancel := context.WithTimeout(ctx, a.saveTimeout)
	defer cancel()
	res := a.saver.Save(ctx, key, snap.nb, snap.results)
	if res.Success {
		e.written = snap.seq
	}
	if a.onSaved != nil {
		a.onSaved(key, res)
	}
	return res
}

func (a *AutoSaver) entryLocked(key string) *entry {
	e, ok := a.entries[key]
	if !ok {
		e = &entry{}
		a.entries[key] = e
	}
	return e
}

func (a *AutoSaver) disarmLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.pending = nil
}

func (a *AutoSaver) takeLocked(e *entry, snap *snapshot) {
	a.seq++
	snap.seq = a.seq
	e.active++
	a.inflight.Add(1)
}

func (a *AutoSaver) releaseLocked(key string, e *entry) {
	if e.pending == nil && e.active == 0 && a.entries[key] == e {
		delete(a.entries, key)
	}
}
