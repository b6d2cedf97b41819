package draft

import (
	"context"
	"strconv"
	"sync"

	"github.com/medequip/equipment_backend/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("equipment-backend/draft")

type State int

const (
	StateEmpty State = iota
	StateClean
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	}
	return "empty"
}

type EventKind string

const (
	EventDraftRestored  EventKind = "draft_restored"
	EventDraftDiscarded EventKind = "draft_discarded"
	EventSaved          EventKind = "saved"
)

type Event struct {
	Kind  EventKind
	Scope string
}

// Notifier runs while the engine is locked and must not call back into it.
type Notifier func(Event)

type Options struct {
	KeyFunc  KeyFunc
	Notifier Notifier
	Logger   *logrus.Logger
}

type FetchResult struct {
	Restored bool
}

type SaveResult struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Engine tracks one scope at a time: the last fetched server list and the
// working copy edited by the user.
type Engine[T any] struct {
	mu      sync.Mutex
	backend Backend[T]
	store   Store
	key     KeyFunc
	notify  Notifier
	logger  *logrus.Logger

	scope   string
	loaded  bool
	server  []Record[T]
	working []Record[T]
	// next sentinel id handed out by Add
	nextTempID int64
}

func NewEngine[T any](backend Backend[T], store Store, opts Options) *Engine[T] {
	e := &Engine[T]{
		backend:    backend,
		store:      store,
		key:        opts.KeyFunc,
		notify:     opts.Notifier,
		logger:     opts.Logger,
		nextTempID: -1,
	}
	if e.key == nil {
		e.key = DefaultKey
	}
	if e.logger == nil {
		e.logger = config.GetLogger()
	}
	return e
}

func (e *Engine[T]) Scope() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scope
}

func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine[T]) HasChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded && !recordsEqual(e.server, e.working)
}

func (e *Engine[T]) Working() []Record[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.working)
}

func (e *Engine[T]) Server() []Record[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.server)
}

// Plan returns what Save would submit right now.
func (e *Engine[T]) Plan() Plan[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Reconcile(e.server, e.working)
}

// Reset drops both lists without touching the cache; the scope becomes absent.
func (e *Engine[T]) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked("")
}

// Fetch loads the scope from the backend. A cached working copy for the
// scope wins over the fresh server list and raises EventDraftRestored.
func (e *Engine[T]) Fetch(ctx context.Context, scope string) (FetchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if scope == "" {
		e.resetLocked("")
		return FetchResult{}, ErrScopeRequired
	}

	records, err := e.backend.Fetch(ctx, scope)
	if err != nil {
		e.resetLocked(scope)
		return FetchResult{}, &FetchError{Scope: scope, Err: err}
	}

	e.scope = scope
	e.loaded = true
	e.server = cloneRecords(records)
	e.working = cloneRecords(records)

	key := e.key(scope)
	cached, found, err := e.store.Get(ctx, key)
	if err != nil {
		config.LogError(e.logger, "draft", "Fetch", "store.Get", key, err)
		found = false
	}

	result := FetchResult{}
	if found {
		restored, derr := decodeRecords[T](cached)
		if derr != nil {
			config.LogError(e.logger, "draft", "Fetch", "decode cached draft", key, derr)
			e.removeCacheLocked(ctx)
		} else {
			e.working = cloneRecords(restored)
			result.Restored = true
			if recordsEqual(e.server, e.working) {
				// the cache only ever mirrors a dirty working copy
				e.removeCacheLocked(ctx)
			}
		}
	}
	e.nextTempID = nextSentinel(e.working)

	if result.Restored {
		e.emit(EventDraftRestored)
	}
	return result, nil
}

// Mutate replaces the working copy. The cache entry is written while the
// copy differs from the server list and removed once it converges. The
// in-memory copy is replaced even when the cache write fails. A list with a
// zero or repeated id is refused with ErrInvalidRecordId and changes nothing.
func (e *Engine[T]) Mutate(ctx context.Context, records []Record[T]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mutateLocked(ctx, cloneRecords(records))
}

// Add appends payloads as unsaved records with fresh sentinel ids.
func (e *Engine[T]) Add(ctx context.Context, payloads ...T) ([]Record[T], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, ErrNotLoaded
	}

	working := cloneRecords(e.working)
	added := make([]Record[T], 0, len(payloads))
	for _, p := range payloads {
		rec := Record[T]{ID: e.nextTempID, Data: p}
		e.nextTempID--
		working = append(working, rec)
		added = append(added, rec)
	}
	return added, e.mutateLocked(ctx, working)
}

// Remove drops records from the working copy. Unknown ids are ignored.
func (e *Engine[T]) Remove(ctx context.Context, ids ...int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return ErrNotLoaded
	}

	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	working := make([]Record[T], 0, len(e.working))
	for _, r := range e.working {
		if !drop[r.ID] {
			working = append(working, r)
		}
	}
	return e.mutateLocked(ctx, cloneRecords(working))
}

// Update edits one working record in place.
func (e *Engine[T]) Update(ctx context.Context, id int64, edit func(*T)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return ErrNotLoaded
	}

	working := cloneRecords(e.working)
	for i := range working {
		if working[i].ID == id {
			edit(&working[i].Data)
			return e.mutateLocked(ctx, working)
		}
	}
	return ErrRecordNotFound
}

// Cancel discards the working copy.
func (e *Engine[T]) Cancel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return ErrNotLoaded
	}

	e.working = cloneRecords(e.server)
	e.nextTempID = nextSentinel(e.working)
	err := e.store.Remove(ctx, e.key(e.scope))
	e.emit(EventDraftDiscarded)
	return err
}

// Save submits inserts, then updates one by one, then deletes, stopping at
// the first failure. Phases that already succeeded are not rolled back.
// After a full success the cache entry is dropped and the scope re-fetched.
// A failed re-fetch returns the result with a *ReloadError.
func (e *Engine[T]) Save(ctx context.Context) (SaveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := SaveResult{}
	if !e.loaded {
		return result, ErrNotLoaded
	}
	if recordsEqual(e.server, e.working) {
		return result, nil
	}

	ctx, span := tracer.Start(ctx, "draft.Save")
	defer span.End()
	span.SetAttributes(attribute.String("draft.scope", e.scope))

	plan := Reconcile(e.server, e.working)
	span.SetAttributes(
		attribute.Int("draft.inserts", len(plan.Inserts)),
		attribute.Int("draft.updates", len(plan.Updates)),
		attribute.Int("draft.deletes", len(plan.Deletes)),
	)

	fail := func(err *SaveError) (SaveResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(e.logger, "draft", "Save", string(err.Phase), map[string]any{
			"scope":     e.scope,
			"record_id": err.RecordID,
		}, err.Err)
		return result, err
	}

	if len(plan.Inserts) > 0 {
		if err := e.backend.Insert(ctx, e.scope, plan.Inserts); err != nil {
			return fail(&SaveError{Scope: e.scope, Phase: PhaseInsert, Err: err})
		}
		result.Inserted = len(plan.Inserts)
	}

	for _, u := range plan.Updates {
		if err := e.backend.Update(ctx, u.ID, u.Data); err != nil {
			return fail(&SaveError{Scope: e.scope, Phase: PhaseUpdate, RecordID: u.ID, Err: err})
		}
		result.Updated++
	}

	if len(plan.Deletes) > 0 {
		if err := e.backend.Delete(ctx, plan.Deletes); err != nil {
			return fail(&SaveError{Scope: e.scope, Phase: PhaseDelete, Err: err})
		}
		result.Deleted = len(plan.Deletes)
	}

	e.removeCacheLocked(ctx)

	// Re-read directly from the backend: the cache must not win here.
	records, err := e.backend.Fetch(ctx, e.scope)
	if err != nil {
		scope := e.scope
		e.resetLocked(scope)
		span.RecordError(err)
		config.LogError(e.logger, "draft", "Save", "reload", scope, err)
		e.emit(EventSaved)
		return result, &ReloadError{Scope: scope, Result: result, Err: err}
	}
	e.server = cloneRecords(records)
	e.working = cloneRecords(records)
	e.nextTempID = nextSentinel(e.working)
	e.emit(EventSaved)
	return result, nil
}

func (e *Engine[T]) stateLocked() State {
	if !e.loaded {
		return StateEmpty
	}
	if recordsEqual(e.server, e.working) {
		return StateClean
	}
	return StateDirty
}

func (e *Engine[T]) mutateLocked(ctx context.Context, working []Record[T]) error {
	if !e.loaded {
		return ErrNotLoaded
	}
	if err := checkIds(working); err != nil {
		return err
	}
	e.working = working
	if next := nextSentinel(working); next < e.nextTempID {
		e.nextTempID = next
	}

	key := e.key(e.scope)
	if recordsEqual(e.server, e.working) {
		return e.store.Remove(ctx, key)
	}
	raw, err := encodeRecords(e.working)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, key, raw)
}

func (e *Engine[T]) removeCacheLocked(ctx context.Context) {
	key := e.key(e.scope)
	if err := e.store.Remove(ctx, key); err != nil {
		config.LogError(e.logger, "draft", "removeCache", "store.Remove", key, err)
	}
}

func (e *Engine[T]) resetLocked(scope string) {
	e.scope = scope
	e.loaded = false
	e.server = []Record[T]{}
	e.working = []Record[T]{}
	e.nextTempID = -1
}

func (e *Engine[T]) emit(kind EventKind) {
	if e.notify == nil {
		return
	}
	e.notify(Event{Kind: kind, Scope: e.scope})
}

// nextSentinel returns a negative id below every id in records.
func nextSentinel[T any](records []Record[T]) int64 {
	next := int64(-1)
	for _, r := range records {
		if r.ID <= next {
			next = r.ID - 1
		}
	}
	return next
}

// ScopeFromInt formats numeric scope ids (plan ids) the way keys expect.
func ScopeFromInt(id int64) string {
	return strconv.FormatInt(id, 10)
}
