package draft

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Note string `json:"note"`
}

type call struct {
	op  string
	ids []int64
	n   int
}

type fakeBackend struct {
	rows       []Record[note]
	nextID     int64
	calls      []call
	fetchErr   error
	insertErr  error
	updateErrs map[int64]error
	deleteErr  error
}

func newFakeBackend(rows ...Record[note]) *fakeBackend {
	return &fakeBackend{rows: rows, nextID: 100, updateErrs: map[int64]error{}}
}

func (f *fakeBackend) Fetch(_ context.Context, _ string) ([]Record[note], error) {
	f.calls = append(f.calls, call{op: "fetch"})
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return cloneRecords(f.rows), nil
}

func (f *fakeBackend) Insert(_ context.Context, _ string, payloads []note) error {
	f.calls = append(f.calls, call{op: "insert", n: len(payloads)})
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, p := range payloads {
		f.nextID++
		f.rows = append(f.rows, Record[note]{ID: f.nextID, Data: p})
	}
	return nil
}

func (f *fakeBackend) Update(_ context.Context, id int64, payload note) error {
	f.calls = append(f.calls, call{op: "update", ids: []int64{id}})
	if err := f.updateErrs[id]; err != nil {
		return err
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Data = payload
		}
	}
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, ids []int64) error {
	f.calls = append(f.calls, call{op: "delete", ids: ids})
	if f.deleteErr != nil {
		return f.deleteErr
	}
	drop := map[int64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeBackend) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func rec(id int64, text string) Record[note] {
	return Record[note]{ID: id, Data: note{Note: text}}
}

func TestFetchRestoresCachedDraft(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"))
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "draft_7", `[{"id":1,"data":{"note":"B"}}]`))

	var events []Event
	engine := NewEngine[note](backend, store, Options{Notifier: func(e Event) { events = append(events, e) }})

	res, err := engine.Fetch(ctx, "7")
	require.NoError(t, err)
	assert.True(t, res.Restored)
	assert.Equal(t, []Record[note]{rec(1, "B")}, engine.Working())
	assert.Equal(t, []Record[note]{rec(1, "A")}, engine.Server())
	assert.Equal(t, StateDirty, engine.State())
	require.Len(t, events, 1)
	assert.Equal(t, Event{Kind: EventDraftRestored, Scope: "7"}, events[0])
}

func TestFetchWithoutDraftIsClean(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine[note](newFakeBackend(rec(1, "A")), NewMemoryStore(), Options{})

	res, err := engine.Fetch(ctx, "7")
	require.NoError(t, err)
	assert.False(t, res.Restored)
	assert.Equal(t, StateClean, engine.State())
	assert.False(t, engine.HasChanges())
}

func TestFetchRestoredCopyEqualToServerDropsCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "draft_7", `[{"id":1,"data":{"note":"A"}}]`))
	engine := NewEngine[note](newFakeBackend(rec(1, "A")), store, Options{})

	res, err := engine.Fetch(ctx, "7")
	require.NoError(t, err)
	assert.True(t, res.Restored)
	assert.Equal(t, StateClean, engine.State())
	assert.Equal(t, 0, store.Len())
}

func TestFetchErrorResetsState(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"))
	store := NewMemoryStore()
	engine := NewEngine[note](backend, store, Options{})

	_, err := engine.Fetch(ctx, "7")
	require.NoError(t, err)
	require.NoError(t, engine.Mutate(ctx, []Record[note]{rec(1, "changed")}))
	require.Equal(t, 1, store.Len())

	backend.fetchErr = errors.New("network down")
	_, err = engine.Fetch(ctx, "7")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "network down")
	assert.Equal(t, StateEmpty, engine.State())
	assert.Empty(t, engine.Working())
	assert.Empty(t, engine.Server())
	// cache untouched
	assert.Equal(t, 1, store.Len())
}

func TestFetchRequiresScope(t *testing.T) {
	engine := NewEngine[note](newFakeBackend(), NewMemoryStore(), Options{})
	_, err := engine.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrScopeRequired)
	assert.Equal(t, StateEmpty, engine.State())
}

func TestCacheMirrorsDirtiness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := NewEngine[note](newFakeBackend(rec(1, "A"), rec(2, "B")), store, Options{})
	_, err := engine.Fetch(ctx, "3")
	require.NoError(t, err)

	steps := [][]Record[note]{
		{rec(1, "A")},
		{rec(1, "A"), rec(2, "B")},
		{rec(1, "A"), rec(2, "B"), rec(-1, "new")},
		{rec(1, "A"), rec(2, "B")},
	}
	for i, working := range steps {
		require.NoError(t, engine.Mutate(ctx, working))
		cached, found, err := store.Get(ctx, "draft_3")
		require.NoError(t, err)
		if engine.HasChanges() {
			require.Truef(t, found, "step %d: dirty copy must be cached", i)
			restored, err := decodeRecords[note](cached)
			require.NoError(t, err)
			assert.Equal(t, working, restored)
		} else {
			assert.Falsef(t, found, "step %d: clean copy must not be cached", i)
		}
	}
}

func TestMutateBeforeFetch(t *testing.T) {
	engine := NewEngine[note](newFakeBackend(), NewMemoryStore(), Options{})
	err := engine.Mutate(context.Background(), []Record[note]{rec(-1, "x")})
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestCancelRestoresServerCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	var events []Event
	engine := NewEngine[note](newFakeBackend(rec(1, "A")), store, Options{Notifier: func(e Event) { events = append(events, e) }})
	_, err := engine.Fetch(ctx, "7")
	require.NoError(t, err)
	require.NoError(t, engine.Mutate(ctx, []Record[note]{rec(1, "edited")}))

	require.NoError(t, engine.Cancel(ctx))
	assert.Equal(t, StateClean, engine.State())
	assert.Equal(t, []Record[note]{rec(1, "A")}, engine.Working())
	assert.Equal(t, 0, store.Len())
	require.Len(t, events, 1)
	assert.Equal(t, EventDraftDiscarded, events[0].Kind)
}

func TestSaveSubmitsInOrderAndRefetches(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"), rec(2, "B"), rec(3, "C"))
	store := NewMemoryStore()
	engine := NewEngine[note](backend, store, Options{})
	_, err := engine.Fetch(ctx, "9")
	require.NoError(t, err)

	require.NoError(t, engine.Mutate(ctx, []Record[note]{
		rec(1, "A"),
		rec(2, "B2"),
		rec(-1, "D"),
	}))

	res, err := engine.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Inserted: 1, Updated: 1, Deleted: 1}, res)

	var ops []string
	for _, c := range backend.calls {
		ops = append(ops, c.op)
	}
	assert.Equal(t, []string{"fetch", "insert", "update", "delete", "fetch"}, ops)
	assert.Equal(t, []int64{3}, backend.calls[3].ids)

	assert.Equal(t, StateClean, engine.State())
	assert.Equal(t, 0, store.Len())
	working := engine.Working()
	require.Len(t, working, 3)
	for _, r := range working {
		assert.Positive(t, r.ID, "server assigned ids are picked up after save")
	}
}

func TestSaveTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"))
	engine := NewEngine[note](backend, NewMemoryStore(), Options{})
	_, err := engine.Fetch(ctx, "1")
	require.NoError(t, err)
	_, err = engine.Add(ctx, note{Note: "new"})
	require.NoError(t, err)

	_, err = engine.Save(ctx)
	require.NoError(t, err)
	callsAfterFirst := len(backend.calls)

	res, err := engine.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, SaveResult{}, res)
	assert.Equal(t, callsAfterFirst, len(backend.calls))
}

func TestSaveStopsAtFirstFailedUpdate(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"), rec(2, "B"), rec(3, "C"))
	backend.updateErrs[2] = errors.New("conflict")
	engine := NewEngine[note](backend, NewMemoryStore(), Options{})
	_, err := engine.Fetch(ctx, "5")
	require.NoError(t, err)

	// record 3 removed so a delete would be pending
	require.NoError(t, engine.Mutate(ctx, []Record[note]{rec(1, "A1"), rec(2, "B1")}))

	_, err = engine.Save(ctx)
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, PhaseUpdate, saveErr.Phase)
	assert.Equal(t, int64(2), saveErr.RecordID)
	assert.Contains(t, err.Error(), "2")
	assert.Contains(t, err.Error(), "conflict")

	assert.Equal(t, 2, backend.count("update"))
	assert.Equal(t, 0, backend.count("delete"))
	assert.Equal(t, StateDirty, engine.State())
}

func TestSaveInsertFailureSkipsLaterPhases(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"), rec(2, "B"))
	backend.insertErr = errors.New("quota exceeded")
	store := NewMemoryStore()
	engine := NewEngine[note](backend, store, Options{})
	_, err := engine.Fetch(ctx, "5")
	require.NoError(t, err)
	require.NoError(t, engine.Mutate(ctx, []Record[note]{rec(1, "A1"), rec(-1, "new")}))

	_, err = engine.Save(ctx)
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, PhaseInsert, saveErr.Phase)
	assert.Equal(t, 0, backend.count("update"))
	assert.Equal(t, 0, backend.count("delete"))
	assert.Equal(t, 1, store.Len(), "draft stays cached after a failed save")
}

func TestSaveDeleteFailureReported(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"), rec(2, "B"))
	backend.deleteErr = errors.New("in use")
	engine := NewEngine[note](backend, NewMemoryStore(), Options{})
	_, err := engine.Fetch(ctx, "5")
	require.NoError(t, err)
	require.NoError(t, engine.Remove(ctx, 2))

	_, err = engine.Save(ctx)
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, PhaseDelete, saveErr.Phase)
	assert.ErrorIs(t, err, backend.deleteErr)
}

func TestAddUsesFreshSentinels(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine[note](newFakeBackend(rec(1, "A")), NewMemoryStore(), Options{})
	_, err := engine.Fetch(ctx, "5")
	require.NoError(t, err)
	require.NoError(t, engine.Mutate(ctx, []Record[note]{rec(1, "A"), rec(-4, "restored")}))

	added, err := engine.Add(ctx, note{Note: "x"}, note{Note: "y"})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, int64(-5), added[0].ID)
	assert.Equal(t, int64(-6), added[1].ID)
}

func TestUpdateEditsWorkingCopyOnly(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine[note](newFakeBackend(rec(1, "A")), NewMemoryStore(), Options{})
	_, err := engine.Fetch(ctx, "5")
	require.NoError(t, err)

	require.NoError(t, engine.Update(ctx, 1, func(n *note) { n.Note = "edited" }))
	assert.Equal(t, "edited", engine.Working()[0].Data.Note)
	assert.Equal(t, "A", engine.Server()[0].Data.Note)

	assert.ErrorIs(t, engine.Update(ctx, 42, func(*note) {}), ErrRecordNotFound)
}

func TestResetKeepsCachedDraft(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := NewEngine[note](newFakeBackend(rec(1, "A")), store, Options{})
	_, err := engine.Fetch(ctx, "7")
	require.NoError(t, err)
	require.NoError(t, engine.Mutate(ctx, []Record[note]{rec(1, "edited")}))

	engine.Reset()
	assert.Equal(t, StateEmpty, engine.State())
	assert.Equal(t, "", engine.Scope())
	assert.Empty(t, engine.Working())
	assert.Equal(t, 1, store.Len())

	res, err := engine.Fetch(ctx, "7")
	require.NoError(t, err)
	assert.True(t, res.Restored)
	assert.Equal(t, []Record[note]{rec(1, "edited")}, engine.Working())
}

func TestMutateRejectsMissingOrRepeatedIds(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"), rec(2, "B"))
	store := NewMemoryStore()
	engine := NewEngine[note](backend, store, Options{})
	_, err := engine.Fetch(ctx, "3")
	require.NoError(t, err)

	cases := map[string][]Record[note]{
		"missing id":   {rec(1, "A"), rec(0, "typed by user")},
		"repeated id":  {rec(1, "A1"), rec(1, "A2"), rec(2, "B")},
		"repeated new": {rec(1, "A"), rec(2, "B"), rec(-1, "x"), rec(-1, "y")},
	}
	for name, working := range cases {
		t.Run(name, func(t *testing.T) {
			err := engine.Mutate(ctx, working)
			assert.ErrorIs(t, err, ErrInvalidRecordId)
			assert.Equal(t, StateClean, engine.State())
			assert.Equal(t, []Record[note]{rec(1, "A"), rec(2, "B")}, engine.Working())
			assert.Equal(t, 0, store.Len())
		})
	}

	res, err := engine.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, SaveResult{}, res)
	assert.Equal(t, 1, backend.count("fetch"))
}

func TestFetchDropsCachedDraftWithBadIds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, DefaultKey("3"), `[{"id":1,"data":{"note":"A"}},{"id":0,"data":{"note":"lost"}}]`))
	engine := NewEngine[note](newFakeBackend(rec(1, "A")), store, Options{})

	res, err := engine.Fetch(ctx, "3")
	require.NoError(t, err)
	assert.False(t, res.Restored)
	assert.Equal(t, StateClean, engine.State())
	assert.Equal(t, 0, store.Len())
}

func TestSaveReloadFailureKeepsResult(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(rec(1, "A"), rec(2, "B"))
	store := NewMemoryStore()
	engine := NewEngine[note](backend, store, Options{})
	_, err := engine.Fetch(ctx, "8")
	require.NoError(t, err)
	require.NoError(t, engine.Mutate(ctx, []Record[note]{rec(1, "A1"), rec(-1, "C")}))

	backend.fetchErr = errors.New("timeout")
	res, err := engine.Save(ctx)

	var reloadErr *ReloadError
	require.ErrorAs(t, err, &reloadErr)
	assert.ErrorIs(t, err, backend.fetchErr)
	assert.Contains(t, err.Error(), "saved, reload failed")
	want := SaveResult{Inserted: 1, Updated: 1, Deleted: 1}
	assert.Equal(t, want, res)
	assert.Equal(t, want, reloadErr.Result)

	assert.Equal(t, StateEmpty, engine.State())
	assert.Equal(t, 0, store.Len())
	assert.Len(t, backend.rows, 2)
}
