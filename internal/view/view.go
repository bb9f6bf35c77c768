// Package view holds the records of one site and phase as an editor sees
// them: edits apply locally at once and reach the backend through a
// debounced updater.
package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/hierarchy"
	"github.com/ETAnderson/celltrack/internal/logging"
	"github.com/ETAnderson/celltrack/internal/updater"
)

// Backend is what the view reads from and writes to. *client.Client
// satisfies it, as does LocalBackend.
type Backend interface {
	GetBySite(ctx context.Context, site string, phase string) ([]domain.TestCaseRecord, error)
	UpdateStatus(ctx context.Context, uniqueTestID string, upd domain.FieldUpdate) error
	UpdateNote(ctx context.Context, uniqueTestID string, note string) error
}

type Config struct {
	Site         string
	Phase        string
	Delay        time.Duration
	WriteTimeout time.Duration
	Logger       *zap.SugaredLogger
}

// Notification reports a write that did not reach the backend. The local
// value is left as edited.
type Notification struct {
	Record string
	Field  domain.Field
	Value  string
	Err    error
	At     time.Time
}

func (n Notification) String() string {
	return fmt.Sprintf("%s %s=%q not saved: %v", n.Record, n.Field, n.Value, n.Err)
}

type TestingView struct {
	backend Backend
	site    string
	phase   string
	log     *zap.SugaredLogger
	upd     *updater.Updater

	mu      sync.RWMutex
	records []domain.TestCaseRecord
	index   map[string]int
	notes   []Notification
}

func New(backend Backend, cfg Config) *TestingView {
	v := &TestingView{
		backend: backend,
		site:    cfg.Site,
		phase:   cfg.Phase,
		log:     logging.OrNop(cfg.Logger),
		index:   make(map[string]int),
	}
	v.upd = updater.New(updater.Config{
		Delay:        cfg.Delay,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       v.log,
		Notify:       v.notify,
	})
	return v
}

// RecordKey is the view's name for a record. testId repeats across the
// cells of one cell type, so per-cell records carry their cell.
func RecordKey(rec domain.TestCaseRecord) string {
	if rec.Cell == "" || rec.Cell == domain.SystemCell {
		return rec.TestID
	}
	return rec.TestID + "@" + rec.Cell
}

// Load replaces the records with a fresh fetch. Pending edits keep their
// keys and resolve ids against the new slice when they fire.
func (v *TestingView) Load(ctx context.Context) error {
	recs, err := v.backend.GetBySite(ctx, v.site, v.phase)
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", v.site, v.phase, err)
	}

	index := make(map[string]int, len(recs))
	for i := range recs {
		recs[i].ResolveKind()
		index[RecordKey(recs[i])] = i
	}

	v.mu.Lock()
	v.records = recs
	v.index = index
	v.mu.Unlock()

	v.log.Debugw("view loaded", "site", v.site, "phase", v.phase, "records", len(recs))
	return nil
}

func (v *TestingView) Records() []domain.TestCaseRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]domain.TestCaseRecord(nil), v.records...)
}

func (v *TestingView) Record(key string) (domain.TestCaseRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.index[key]
	if !ok {
		return domain.TestCaseRecord{}, false
	}
	return v.records[i], true
}

// Groups is the hierarchy of the current (optimistic) records.
func (v *TestingView) Groups() []hierarchy.CellTypeGroup {
	return hierarchy.Build(v.Records())
}

// SetField applies value locally and schedules the debounced write.
func (v *TestingView) SetField(key string, f domain.Field, value string) error {
	if !f.Valid() {
		return fmt.Errorf("unknown field %q", f)
	}

	if f == domain.FieldStatus {
		status, ok := domain.ParseStatus(value)
		if !ok {
			return fmt.Errorf("invalid status %q", value)
		}
		value = string(status)
	}

	v.mu.Lock()
	i, ok := v.index[key]
	if !ok {
		v.mu.Unlock()
		return fmt.Errorf("%s: %w", key, updater.ErrRecordNotFound)
	}
	if !v.records[i].Kind.Allows(f) {
		kind := v.records[i].Kind
		v.mu.Unlock()
		return fmt.Errorf("field %s does not apply to %s tests", f, kind)
	}
	v.records[i].Apply(f, value)
	v.mu.Unlock()

	// v.mu is never held while taking the updater's lock.
	return v.upd.Schedule(updater.Key{Record: key, Field: f}, value, v.writeFor(f), v.lookup)
}

func (v *TestingView) SetStatus(key string, status string) error {
	return v.SetField(key, domain.FieldStatus, status)
}

func (v *TestingView) SetNote(key string, note string) error {
	return v.SetField(key, domain.FieldNote, note)
}

// Notifications returns failed writes seen so far, oldest first.
func (v *TestingView) Notifications() []Notification {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Notification(nil), v.notes...)
}

func (v *TestingView) Pending() int { return v.upd.Pending() }

// Flush sends every pending edit now.
func (v *TestingView) Flush(ctx context.Context) error { return v.upd.Flush(ctx) }

// Close drops unsent edits and waits for writes already in flight.
func (v *TestingView) Close() { v.upd.Close() }

func (v *TestingView) lookup(key string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.index[key]
	if !ok || v.records[i].UniqueTestID == "" {
		return "", false
	}
	return v.records[i].UniqueTestID, true
}

func (v *TestingView) writeFor(f domain.Field) updater.WriteFunc {
	if f == domain.FieldNote {
		return func(ctx context.Context, id string, upd domain.FieldUpdate) error {
			return v.backend.UpdateNote(ctx, id, upd[domain.FieldNote])
		}
	}
	return func(ctx context.Context, id string, upd domain.FieldUpdate) error {
		return v.backend.UpdateStatus(ctx, id, upd)
	}
}

func (v *TestingView) notify(key updater.Key, value string, err error) {
	n := Notification{Record: key.Record, Field: key.Field, Value: value, Err: err, At: time.Now().UTC()}

	v.mu.Lock()
	v.notes = append(v.notes, n)
	v.mu.Unlock()

	v.log.Warnw("edit not saved", "record", key.Record, "field", key.Field, "error", err)
}
