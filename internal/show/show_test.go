package show

import (
	"context"
	"testing"
	"time"

	"github.com/puppetworks/puppetstage/internal/clock"
	"github.com/puppetworks/puppetstage/internal/model"
	"github.com/puppetworks/puppetstage/internal/store"
)

type fakeClip struct {
	dur float64
}

func (c fakeClip) Duration() float64 { return c.dur }

// fakeDecoder yields clips of a fixed length. A non-nil gate blocks every
// decode until the channel is closed.
type fakeDecoder struct {
	dur  float64
	gate chan struct{}
}

func (d *fakeDecoder) Decode(data []byte) (AudioClip, error) {
	if d.gate != nil {
		<-d.gate
	}
	return fakeClip{dur: d.dur}, nil
}

type env struct {
	show  *Show
	store *store.MemoryStore
	ids   *store.MemoryIdentity
	clk   *clock.Manual
	dec   *fakeDecoder
}

func newEnv() *env {
	e := &env{
		store: store.NewMemoryStore(),
		ids:   store.NewMemoryIdentity(),
		clk:   clock.NewManual(),
		dec:   &fakeDecoder{dur: 1.0},
	}
	e.show = New(Options{Store: e.store, Identity: e.ids, Clock: e.clk, Decoder: e.dec})
	return e
}

func (e *env) signIn(t *testing.T) model.Identity {
	t.Helper()
	id, err := e.ids.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return id
}

func waitUntil(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func eventChan(s *Show, name string) chan any {
	ch := make(chan any, 32)
	s.On(name, func(payload any) {
		ch <- payload
	})
	return ch
}

func waitEvent(t *testing.T, ch chan any, name string) any {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q notification", name)
		return nil
	}
}

func TestAuthenticateSharesSignIn(t *testing.T) {
	e := newEnv()

	id1, err := e.show.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !id1.Valid() {
		t.Fatal("expected a valid identity")
	}

	id2, err := e.show.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("second Authenticate: %v", err)
	}
	if id2.ID != id1.ID {
		t.Errorf("expected same identity, got %s and %s", id1.ID, id2.ID)
	}
}

func TestCreateWithoutIdentityIsNoop(t *testing.T) {
	e := newEnv()

	e.show.Create()

	if e.show.Loaded() {
		t.Error("show should not load without an identity")
	}
	if e.show.ID() != "" {
		t.Errorf("unexpected id %q", e.show.ID())
	}
}

func TestCreateMakesEmptyReadyShow(t *testing.T) {
	e := newEnv()
	ident := e.signIn(t)
	loadCh := eventChan(e.show, EventLoad)
	readyCh := eventChan(e.show, EventReady)

	e.show.Create()

	if !e.show.Loaded() || !e.show.Ready() {
		t.Error("new show should be loaded and ready")
	}
	if !e.show.IsCreator() {
		t.Error("creator should own the new show")
	}
	if e.show.Duration() != 0 {
		t.Errorf("new show duration = %v, want 0", e.show.Duration())
	}
	waitEvent(t, loadCh, EventLoad)
	waitEvent(t, readyCh, EventReady)

	id := e.show.ID()
	waitUntil(t, "remote record write", func() bool {
		rec, err := e.store.GetShow(context.Background(), id)
		return err == nil && rec.Creator == ident.ID
	})
}

func TestLoadMissingShowEmitsError(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	errCh := eventChan(e.show, EventError)

	e.show.Load("no-such-show")

	payload := waitEvent(t, errCh, EventError)
	if payload != "no-such-show" {
		t.Errorf("error payload = %v, want show id", payload)
	}
	waitUntil(t, "unload after failed load", func() bool {
		return !e.show.Loaded() && e.show.ID() == ""
	})
}

func TestLoadPopulatesSortedLogAndHydratesAudio(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	ctx := context.Background()

	id := e.store.NewShowID()
	rec := &model.ShowRecord{
		ID:      id,
		Title:   "rehearsal",
		Creator: "someone-else",
		Events: map[string]model.Event{
			"k2": {Time: 2, Type: "pose"},
			"k1": {Time: 1, Type: "move"},
			"k3": {Time: 0.5, Type: "move"},
		},
		Audio: map[string]float64{"take1": 1.5},
	}
	if err := e.store.PutShow(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := e.store.UploadAudio(ctx, id, "take1", []byte("blob")); err != nil {
		t.Fatal(err)
	}

	readyCh := eventChan(e.show, EventReady)
	e.show.Load(id)
	waitEvent(t, readyCh, EventReady)

	if e.show.Title() != "rehearsal" {
		t.Errorf("title = %q", e.show.Title())
	}
	if e.show.IsCreator() {
		t.Error("loading someone else's show should not grant creator")
	}

	evs := e.show.Events()
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Time < evs[i-1].Time {
			t.Errorf("log not sorted: %v", evs)
		}
	}

	// take1 runs 1.5..2.5, beyond the last event at 2.0.
	if e.show.Duration() != 2.5 {
		t.Errorf("duration = %v, want 2.5", e.show.Duration())
	}
	assets := e.show.AudioAssets()
	if len(assets) != 1 || assets[0].Clip == nil {
		t.Fatalf("asset not hydrated: %+v", assets)
	}
}

func TestLoadedWithPendingAudioIsNotReady(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	ctx := context.Background()
	e.dec.gate = make(chan struct{})

	id := e.store.NewShowID()
	if err := e.store.PutShow(ctx, &model.ShowRecord{
		ID:    id,
		Audio: map[string]float64{"take1": 0},
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.store.UploadAudio(ctx, id, "take1", []byte("blob")); err != nil {
		t.Fatal(err)
	}

	loadCh := eventChan(e.show, EventLoad)
	readyCh := eventChan(e.show, EventReady)
	e.show.Load(id)
	waitEvent(t, loadCh, EventLoad)

	if !e.show.Loaded() {
		t.Fatal("show should be loaded")
	}
	if e.show.Ready() {
		t.Fatal("show must not be ready while a decode is pending")
	}

	close(e.dec.gate)
	waitEvent(t, readyCh, EventReady)
	if !e.show.Ready() {
		t.Error("show should be ready once the decode completes")
	}
}

func TestAddEventExtendsDuration(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	e.show.Create()

	e.show.AddEvent("move", nil, nil, 0, 1.0)
	if e.show.Duration() != 1.0 {
		t.Errorf("duration = %v, want 1.0", e.show.Duration())
	}

	e.show.AddEvent("sound", map[string]any{"name": "horn"}, nil, 0.5, 2.0)
	if e.show.Duration() != 2.5 {
		t.Errorf("duration = %v, want 2.5", e.show.Duration())
	}

	// Earlier events never shrink it.
	e.show.AddEvent("move", nil, nil, 0, 0.2)
	if e.show.Duration() != 2.5 {
		t.Errorf("duration = %v, want 2.5", e.show.Duration())
	}

	// Negative timestamps clamp to zero.
	e.show.AddEvent("move", nil, nil, 0, -3)
	evs := e.show.Events()
	if evs[len(evs)-1].Time != 0 {
		t.Errorf("negative time not clamped: %v", evs[len(evs)-1])
	}

	id := e.show.ID()
	waitUntil(t, "events pushed to store", func() bool {
		rec, err := e.store.GetShow(context.Background(), id)
		return err == nil && len(rec.Events) == 4
	})
}

func TestAddEventRejectedForNonCreator(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	e.show.Create()
	id := e.show.ID()
	waitUntil(t, "show record write", func() bool {
		_, err := e.store.GetShow(context.Background(), id)
		return err == nil
	})

	e.ids.SetCurrent(model.Identity{ID: "intruder"})
	e.show.AddEvent("move", nil, nil, 0, 1.0)

	if len(e.show.Events()) != 0 {
		t.Error("non-creator event should not be appended")
	}
	// No store write either.
	time.Sleep(50 * time.Millisecond)
	rec, err := e.store.GetShow(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Events) != 0 {
		t.Error("non-creator event reached the store")
	}
}

func TestAddAudioGatesReadyAndExtendsDuration(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	e.show.Create()
	e.dec.gate = make(chan struct{})
	e.dec.dur = 2.0

	unreadyCh := eventChan(e.show, EventUnready)
	readyCh := eventChan(e.show, EventReady)

	e.show.AddAudio([]byte("take"), 1.0)

	waitEvent(t, unreadyCh, EventUnready)
	if e.show.Ready() {
		t.Fatal("show must not be ready while the take decodes")
	}

	close(e.dec.gate)
	waitEvent(t, readyCh, EventReady)
	if e.show.Duration() != 3.0 {
		t.Errorf("duration = %v, want 3.0", e.show.Duration())
	}

	id := e.show.ID()
	waitUntil(t, "audio ref and blob written", func() bool {
		rec, err := e.store.GetShow(context.Background(), id)
		if err != nil || len(rec.Audio) != 1 {
			return false
		}
		for assetID, at := range rec.Audio {
			if at != 1.0 {
				return false
			}
			if _, err := e.store.DownloadAudio(context.Background(), id, assetID); err != nil {
				return false
			}
		}
		return true
	})
}

func TestEraseClearsContentAndRequiresCreator(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	e.show.Create()
	e.show.AddEvent("move", nil, nil, 0, 1.0)
	e.show.AddAudio([]byte("take"), 0)
	waitUntil(t, "take decoded", func() bool { return e.show.Ready() })
	id := e.show.ID()
	waitUntil(t, "content pushed to store", func() bool {
		rec, err := e.store.GetShow(context.Background(), id)
		return err == nil && len(rec.Events) == 1 && len(rec.Audio) == 1
	})

	// A different identity cannot erase.
	e.ids.SetCurrent(model.Identity{ID: "intruder"})
	e.show.Erase()
	if len(e.show.Events()) != 1 {
		t.Fatal("non-creator erase should be rejected")
	}

	e.ids.SetCurrent(model.Identity{ID: e.show.CreatorID()})
	e.show.Erase()

	if len(e.show.Events()) != 0 || len(e.show.AudioAssets()) != 0 {
		t.Error("erase should clear events and audio")
	}
	if e.show.Duration() != 0 {
		t.Errorf("duration = %v, want 0", e.show.Duration())
	}
	if !e.show.Loaded() || !e.show.Ready() {
		t.Error("erased show stays loaded and ready")
	}

	waitUntil(t, "remote content cleared", func() bool {
		rec, err := e.store.GetShow(context.Background(), id)
		return err == nil && len(rec.Events) == 0 && len(rec.Audio) == 0
	})
}

func TestEraseDiscardsInflightDecode(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	e.show.Create()
	e.dec.gate = make(chan struct{})
	e.dec.dur = 5.0

	e.show.AddAudio([]byte("take"), 0)
	e.show.Erase()

	close(e.dec.gate)
	time.Sleep(50 * time.Millisecond)

	if len(e.show.AudioAssets()) != 0 {
		t.Error("completed decode re-inserted an erased asset")
	}
	if e.show.Duration() != 0 {
		t.Errorf("completed decode mutated duration: %v", e.show.Duration())
	}
	if !e.show.Ready() {
		t.Error("erased show should be ready")
	}
}

func TestUnloadResetsEverything(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	e.show.Create()
	e.show.AddEvent("move", nil, nil, 0, 1.0)
	prevID := e.show.ID()

	unloadCh := eventChan(e.show, EventUnload)
	unreadyCh := eventChan(e.show, EventUnready)
	e.show.Unload()

	if payload := waitEvent(t, unloadCh, EventUnload); payload != prevID {
		t.Errorf("unload payload = %v, want previous id", payload)
	}
	waitEvent(t, unreadyCh, EventUnready)

	if e.show.Loaded() || e.show.Ready() || e.show.ID() != "" {
		t.Error("unload should fully reset the show")
	}
	if e.show.Duration() != 0 || len(e.show.Events()) != 0 {
		t.Error("unload should clear content")
	}

	// Idempotent: no second round of notifications.
	e.show.Unload()
	select {
	case <-unloadCh:
		t.Error("second Unload should not emit")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	ctx := context.Background()

	slow := e.store.NewShowID()
	if err := e.store.PutShow(ctx, &model.ShowRecord{ID: slow, Title: "slow"}); err != nil {
		t.Fatal(err)
	}
	fast := e.store.NewShowID()
	if err := e.store.PutShow(ctx, &model.ShowRecord{ID: fast, Title: "fast"}); err != nil {
		t.Fatal(err)
	}

	// Kick off both loads back to back; whichever fetch resolves after the
	// second Load must be discarded if it is the stale one.
	e.show.Load(slow)
	e.show.Load(fast)

	waitUntil(t, "winning load", func() bool { return e.show.Loaded() })
	time.Sleep(50 * time.Millisecond)
	if e.show.Title() != "fast" {
		t.Errorf("title = %q, stale load leaked through", e.show.Title())
	}
	if e.show.ID() != fast {
		t.Errorf("id = %q, want %q", e.show.ID(), fast)
	}
}

func TestSetTitle(t *testing.T) {
	e := newEnv()
	e.signIn(t)
	e.show.Create()
	id := e.show.ID()

	e.show.SetTitle("first act")
	if e.show.Title() != "first act" {
		t.Errorf("title = %q", e.show.Title())
	}
	waitUntil(t, "title pushed to store", func() bool {
		rec, err := e.store.GetShow(context.Background(), id)
		return err == nil && rec.Title == "first act"
	})

	// Non-creator set is rejected.
	e.ids.SetCurrent(model.Identity{ID: "intruder"})
	e.show.SetTitle("hijacked")
	if e.show.Title() != "first act" {
		t.Error("non-creator title change should be rejected")
	}
}
