// Package updater coalesces rapid edits of one record field into a single
// delayed write, with at most one write in flight per field.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ETAnderson/celltrack/internal/domain"
)

const (
	DefaultDelay        = 1000 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second

	flushPoll = 10 * time.Millisecond
)

var (
	ErrClosed         = errors.New("updater is closed")
	ErrRecordNotFound = errors.New("record not found")
)

// Key identifies one debounced field of one record.
type Key struct {
	Record string
	Field  domain.Field
}

func (k Key) String() string {
	return k.Record + "/" + string(k.Field)
}

// WriteFunc persists a partial update against the record's persistent id.
type WriteFunc func(ctx context.Context, uniqueID string, upd domain.FieldUpdate) error

// LookupFunc resolves the persistent id of a record at fire time.
type LookupFunc func(record string) (uniqueID string, ok bool)

// Notifier receives failed writes. It must not call back into the Updater.
type Notifier func(key Key, value string, err error)

type Config struct {
	Delay        time.Duration
	WriteTimeout time.Duration
	Parallel     int
	Logger       *zap.SugaredLogger
	Notify       Notifier
}

type Updater struct {
	delay        time.Duration
	writeTimeout time.Duration
	parallel     int
	logger       *zap.SugaredLogger
	notify       Notifier

	mu       sync.Mutex
	edits    map[Key]*pendingEdit
	closed   bool
	inflight sync.WaitGroup
}

type pendingEdit struct {
	machine *fsm.FSM
	timer   *time.Timer
	gen     uint64

	latest     string
	dispatched string

	write  WriteFunc
	lookup LookupFunc
}

type job struct {
	key    Key
	edit   *pendingEdit
	value  string
	write  WriteFunc
	lookup LookupFunc
}

func New(cfg Config) *Updater {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	return &Updater{
		delay:        cfg.Delay,
		writeTimeout: cfg.WriteTimeout,
		parallel:     cfg.Parallel,
		logger:       cfg.Logger,
		notify:       cfg.Notify,
		edits:        make(map[Key]*pendingEdit),
	}
}

// Schedule records value as the latest for key and restarts its timer.
// write and lookup replace the ones given by earlier calls for the key.
func (u *Updater) Schedule(key Key, value string, write WriteFunc, lookup LookupFunc) error {
	if write == nil || lookup == nil {
		return errors.New("write and lookup are required")
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return ErrClosed
	}

	e, ok := u.edits[key]
	if !ok {
		e = &pendingEdit{machine: newMachine()}
		u.edits[key] = e
	}

	e.latest = value
	e.write = write
	e.lookup = lookup

	u.arm(key, e)

	// A key that is writing stays writing; settle picks the new value up.
	if e.machine.Can(eventEdit) {
		_ = e.machine.Event(context.Background(), eventEdit)
	}

	return nil
}

// State reports the key's current state: idle, pending or writing.
func (u *Updater) State(key Key) string {
	u.mu.Lock()
	defer u.mu.Unlock()

	e, ok := u.edits[key]
	if !ok {
		return stateIdle
	}
	return e.machine.Current()
}

// Pending returns the number of keys that are not idle.
func (u *Updater) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return len(u.edits)
}

// arm must be called with u.mu held.
func (u *Updater) arm(key Key, e *pendingEdit) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(u.delay, func() {
		u.fire(key, gen)
	})
}

func (u *Updater) fire(key Key, gen uint64) {
	u.mu.Lock()

	e, ok := u.edits[key]
	if !ok || u.closed || e.gen != gen {
		u.mu.Unlock()
		return
	}
	e.timer = nil

	if e.machine.Current() == stateWriting {
		// The value stays in e.latest; settle re-arms once the write returns.
		u.mu.Unlock()
		u.logger.Debugw("write in flight, deferring", "key", key.String())
		return
	}

	j, ok := u.begin(key, e)
	u.mu.Unlock()

	if ok {
		_ = u.dispatch(context.Background(), j)
	}
}

// begin moves a pending edit to writing. Must be called with u.mu held.
func (u *Updater) begin(key Key, e *pendingEdit) (job, bool) {
	if err := e.machine.Event(context.Background(), eventFire); err != nil {
		return job{}, false
	}
	u.inflight.Add(1)

	return job{
		key:    key,
		edit:   e,
		value:  e.latest,
		write:  e.write,
		lookup: e.lookup,
	}, true
}

func (u *Updater) dispatch(ctx context.Context, j job) error {
	defer u.inflight.Done()

	uniqueID, ok := j.lookup(j.key.Record)
	if !ok || uniqueID == "" {
		u.logger.Warnw("record not found at write time, dropping edit",
			"key", j.key.String(), "value", j.value)
		u.settle(j)
		return fmt.Errorf("%s: %w", j.key, ErrRecordNotFound)
	}

	wctx, cancel := context.WithTimeout(ctx, u.writeTimeout)
	defer cancel()

	err := j.write(wctx, uniqueID, domain.FieldUpdate{j.key.Field: j.value})
	u.settle(j)

	if err != nil {
		u.logger.Errorw("field write failed",
			"key", j.key.String(), "unique_test_id", uniqueID, "error", err)
		if u.notify != nil {
			u.notify(j.key, j.value, err)
		}
		return fmt.Errorf("write %s: %w", j.key, err)
	}

	u.logger.Debugw("field written", "key", j.key.String(), "unique_test_id", uniqueID)
	return nil
}

// settle ends a write. A value entered while the write was out is sent
// by a fresh timer; the value just dispatched is never resent.
func (u *Updater) settle(j job) {
	u.mu.Lock()
	defer u.mu.Unlock()

	e := j.edit
	e.dispatched = j.value

	switch {
	case u.closed:
		_ = e.machine.Event(context.Background(), eventSettle)
	case e.timer != nil:
		_ = e.machine.Event(context.Background(), eventResume)
	case e.latest != e.dispatched:
		u.arm(j.key, e)
		_ = e.machine.Event(context.Background(), eventResume)
	default:
		_ = e.machine.Event(context.Background(), eventSettle)
	}

	if e.machine.Current() == stateIdle && u.edits[j.key] == e {
		delete(u.edits, j.key)
	}
}

// Flush sends every pending value now instead of waiting for its timer,
// and returns once no key is pending or writing. Keys are written in
// parallel; failures are joined into the returned error.
func (u *Updater) Flush(ctx context.Context) error {
	var errs []error

	for {
		batch, busy := u.takeDue()
		if len(batch) == 0 && busy == 0 {
			return errors.Join(errs...)
		}

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			case <-time.After(flushPoll):
			}
			continue
		}

		results := make([]error, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(u.parallel)
		for i, j := range batch {
			g.Go(func() error {
				results[i] = u.dispatch(gctx, j)
				return nil
			})
		}
		_ = g.Wait()

		for _, err := range results {
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
}

func (u *Updater) takeDue() ([]job, int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil, 0
	}

	var batch []job
	busy := 0
	for key, e := range u.edits {
		if e.machine.Current() != statePending {
			busy++
			continue
		}
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.gen++
		if j, ok := u.begin(key, e); ok {
			batch = append(batch, j)
		}
	}
	return batch, busy
}

// Close stops every timer, discards values not yet sent and waits for
// writes already in flight. Later Schedule calls return ErrClosed.
func (u *Updater) Close() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true

	for key, e := range u.edits {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.gen++
		if e.machine.Current() != stateWriting {
			delete(u.edits, key)
		}
	}
	u.mu.Unlock()

	u.inflight.Wait()
}
