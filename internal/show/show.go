// Package show implements the puppet show timeline engine: an in-memory
// show model with a play/pause/rewind transport over a timed event log, and
// the recorder state machine that captures new performances into it.
package show

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/puppetworks/puppetstage/internal/clock"
	"github.com/puppetworks/puppetstage/internal/events"
	"github.com/puppetworks/puppetstage/internal/model"
	"github.com/puppetworks/puppetstage/internal/store"
)

// Event names emitted by Show. Payloads: load/unload/error carry the show
// ID (string), event carries a model.Event, the rest carry nil.
const (
	EventLoad     = "load"
	EventUnload   = "unload"
	EventError    = "error"
	EventReady    = "ready"
	EventUnready  = "unready"
	EventPlay     = "play"
	EventPause    = "pause"
	EventDispatch = "event"
)

// AudioClip is the decoded form of an audio asset. The engine only needs
// its length; actual playback happens in the host.
type AudioClip interface {
	Duration() float64
}

// AudioDecoder turns an encoded audio payload into a playable clip.
type AudioDecoder interface {
	Decode(data []byte) (AudioClip, error)
}

// AudioAsset is one entry in the show's audio registry. Clip stays nil
// until the asynchronous decode completes.
type AudioAsset struct {
	ID   string
	Time float64
	Clip AudioClip
}

// Show is the authoritative in-memory model of one puppet show: metadata,
// the time-ordered event log, the audio asset registry and the playhead.
// The remote store is the system of record; this state is a cache that is
// pushed optimistically and re-pulled on load.
//
// Only one show is loaded at a time; Load and Create fully unload the
// previous one. Every asynchronous continuation re-validates the
// generation token before touching state, which is the sole cancellation
// mechanism.
type Show struct {
	emitter *events.Emitter
	store   store.ShowStore
	ids     store.IdentityProvider
	clock   clock.Clock
	decoder AudioDecoder

	mu        sync.Mutex
	gen       uint64
	id        string
	title     string
	creatorID string
	loaded    bool
	ready     bool
	duration  float64
	log       []model.Event
	assets    map[string]*AudioAsset
	pending   int

	// transport
	playing    bool
	playStart  time.Time
	playEnd    time.Time
	scanIndex  int
	lastScan   float64
	hasScanned bool
	active     []model.Event

	// shared anonymous sign-in request
	authMu        sync.Mutex
	authWaiters   []chan authResult
	signInPending bool
}

type authResult struct {
	identity model.Identity
	err      error
}

type emission struct {
	name    string
	payload any
}

// Options configures a Show. Store, Identity and Decoder are required;
// Clock defaults to the system clock.
type Options struct {
	Store    store.ShowStore
	Identity store.IdentityProvider
	Clock    clock.Clock
	Decoder  AudioDecoder
}

func New(opts Options) *Show {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	s := &Show{
		emitter: events.NewEmitter(),
		store:   opts.Store,
		ids:     opts.Identity,
		clock:   c,
		decoder: opts.Decoder,
		assets:  make(map[string]*AudioAsset),
	}
	s.ids.OnChange(func(id model.Identity) {
		if id.Valid() {
			s.flushAuthWaiters(authResult{identity: id})
		}
	})
	return s
}

// On subscribes to one of the Event* notifications.
func (s *Show) On(name string, handler events.Handler) events.Subscription {
	return s.emitter.On(name, handler)
}

func (s *Show) Off(sub events.Subscription) {
	s.emitter.Off(sub)
}

func (s *Show) fire(ems []emission) {
	for _, em := range ems {
		s.emitter.Emit(em.name, em.payload)
	}
}

// Authenticate resolves once an identity is established, triggering a
// single anonymous sign-in if none exists. Concurrent callers share the
// outstanding request.
func (s *Show) Authenticate(ctx context.Context) (model.Identity, error) {
	if id, ok := s.ids.Current(); ok {
		return id, nil
	}

	ch := make(chan authResult, 1)
	s.authMu.Lock()
	s.authWaiters = append(s.authWaiters, ch)
	needSignIn := !s.signInPending
	if needSignIn {
		s.signInPending = true
	}
	s.authMu.Unlock()

	if needSignIn {
		go func() {
			id, err := s.ids.SignInAnonymously(context.Background())
			if err != nil {
				slog.Warn("Failed to sign in anonymously", "error", err)
				s.flushAuthWaiters(authResult{err: err})
				return
			}
			s.flushAuthWaiters(authResult{identity: id})
		}()
	}

	select {
	case res := <-ch:
		return res.identity, res.err
	case <-ctx.Done():
		return model.Identity{}, ctx.Err()
	}
}

func (s *Show) flushAuthWaiters(res authResult) {
	s.authMu.Lock()
	waiters := s.authWaiters
	s.authWaiters = nil
	s.signInPending = false
	s.authMu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
}

// Create starts a fresh empty show owned by the current identity. Without
// an identity it is a logged no-op.
func (s *Show) Create() {
	ident, ok := s.ids.Current()
	if !ok {
		slog.Warn("Cannot create a new show if not authenticated")
		return
	}

	s.Unload()

	s.mu.Lock()
	s.gen++
	s.id = s.store.NewShowID()
	s.creatorID = ident.ID
	s.loaded = true
	ems := []emission{{EventLoad, s.id}}
	ems = append(ems, s.refreshReadyLocked()...)
	id := s.id
	s.mu.Unlock()

	rec := &model.ShowRecord{ID: id, Creator: ident.ID}
	go func() {
		if err := s.store.PutShow(context.Background(), rec); err != nil {
			slog.Error("Failed to write new show record", "show_id", id, "error", err)
		}
	}()

	s.fire(ems)
}

// Load unloads the current show and asynchronously fetches the one with
// the given ID. A missing record emits EventError and leaves the show
// unloaded; a stale result (the caller moved on before the fetch resolved)
// is discarded silently.
func (s *Show) Load(id string) {
	s.Unload()
	slog.Info("Loading show", "show_id", id)

	s.mu.Lock()
	s.gen++
	s.id = id
	gen := s.gen
	s.mu.Unlock()

	go s.finishLoad(gen, id)
}

func (s *Show) finishLoad(gen uint64, id string) {
	rec, err := s.store.GetShow(context.Background(), id)

	s.mu.Lock()
	if s.gen != gen || s.id != id {
		// the caller has since loaded something else
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.mu.Unlock()
		if err == store.ErrNotFound {
			slog.Error("Show not found", "show_id", id)
		} else {
			slog.Error("Failed to fetch show", "show_id", id, "error", err)
		}
		s.emitter.Emit(EventError, id)
		s.Unload()
		return
	}

	s.title = rec.Title
	s.creatorID = rec.Creator
	if rec.Duration > 0 {
		s.duration = rec.Duration
	}

	s.log = s.log[:0]
	for _, ev := range rec.Events {
		s.log = append(s.log, ev)
	}
	sort.SliceStable(s.log, func(i, j int) bool {
		return s.log[i].Time < s.log[j].Time
	})

	for assetID, at := range rec.Audio {
		s.registerAssetLocked(gen, assetID, at)
	}

	s.loaded = true
	ems := []emission{{EventLoad, id}}
	ems = append(ems, s.refreshReadyLocked()...)
	s.mu.Unlock()

	s.fire(ems)
}

// registerAssetLocked installs a placeholder asset entry and kicks off its
// asynchronous hydration. Callers hold s.mu.
func (s *Show) registerAssetLocked(gen uint64, assetID string, at float64) {
	s.assets[assetID] = &AudioAsset{ID: assetID, Time: at}
	s.pending++
	go s.hydrateAsset(gen, s.id, assetID)
}

// hydrateAsset downloads and decodes one referenced audio asset. Every
// step re-checks that the show generation and the asset registration are
// still current and abandons silently otherwise. Failures are logged and
// leave the pending count incremented, so the show never reports ready
// until the host intervenes.
func (s *Show) hydrateAsset(gen uint64, showID, assetID string) {
	data, err := s.store.DownloadAudio(context.Background(), showID, assetID)
	if err != nil {
		slog.Warn("Error loading audio asset", "show_id", showID, "asset_id", assetID, "error", err)
		return
	}

	if !s.assetValid(gen, assetID) {
		return
	}

	clip, err := s.decoder.Decode(data)
	if err != nil {
		slog.Error("Error decoding audio asset", "show_id", showID, "asset_id", assetID, "error", err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	asset, ok := s.assets[assetID]
	if !ok {
		s.mu.Unlock()
		return
	}
	asset.Clip = clip
	if end := asset.Time + clip.Duration(); end > s.duration {
		s.duration = end
	}
	s.pending--
	ems := s.refreshReadyLocked()
	s.mu.Unlock()

	s.fire(ems)
}

func (s *Show) assetValid(gen uint64, assetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	_, ok := s.assets[assetID]
	return ok
}

// refreshReadyLocked recomputes readiness and returns the edge
// notification, if any. Callers hold s.mu.
func (s *Show) refreshReadyLocked() []emission {
	next := s.loaded && s.pending == 0
	if next == s.ready {
		return nil
	}
	s.ready = next
	if next {
		return []emission{{EventReady, nil}}
	}
	return []emission{{EventUnready, nil}}
}

// Unload resets the show to its empty state. Idempotent; emits EventUnready
// and EventUnload only for the transitions that actually happen.
func (s *Show) Unload() {
	s.mu.Lock()
	prevID := s.id
	wasLoaded := s.loaded
	wasReady := s.ready

	s.gen++
	s.id = ""
	s.title = ""
	s.creatorID = ""
	s.loaded = false
	s.ready = false
	s.duration = 0
	s.log = nil
	s.assets = make(map[string]*AudioAsset)
	s.pending = 0

	s.playing = false
	s.playStart = time.Time{}
	s.playEnd = time.Time{}
	s.resetScanLocked()
	s.mu.Unlock()

	if wasReady {
		s.emitter.Emit(EventUnready, nil)
	}
	if wasLoaded {
		s.emitter.Emit(EventUnload, prevID)
	}
}

// Erase destructively clears the show's content, locally first and then on
// the store. Remote failures are logged; local state is already gone.
func (s *Show) Erase() {
	s.mu.Lock()
	if s.id == "" {
		s.mu.Unlock()
		return
	}
	if !s.isCreatorLocked() {
		slog.Warn("Cannot erase show if not authenticated as creator", "show_id", s.id)
		s.mu.Unlock()
		return
	}

	ems := s.pauseLocked()
	ems = append(ems, s.rewindLocked()...)

	s.log = nil
	s.assets = make(map[string]*AudioAsset)
	s.pending = 0
	s.duration = 0
	s.resetScanLocked()
	ems = append(ems, s.refreshReadyLocked()...)
	id := s.id
	s.mu.Unlock()

	s.fire(ems)

	go func() {
		ctx := context.Background()
		if err := s.store.ClearEvents(ctx, id); err != nil {
			slog.Warn("Failed to clear remote events", "show_id", id, "error", err)
		}
		if err := s.store.ClearAudioRefs(ctx, id); err != nil {
			slog.Warn("Failed to clear remote audio refs", "show_id", id, "error", err)
		}
		if err := s.store.DeleteAllAudio(ctx, id); err != nil {
			slog.Warn("Failed to delete stored audio files", "show_id", id, "error", err)
		}
	}()
}

// AddEvent appends one event to the log and pushes it to the store. Index
// is optional; a positive duration marks an interval event. Rejected with
// a warning when the show is not loaded or the caller is not the creator.
func (s *Show) AddEvent(evType string, params map[string]any, index *int, duration, at float64) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return
	}
	if !s.isCreatorLocked() {
		slog.Warn("Cannot edit show if not authenticated as creator", "show_id", s.id)
		s.mu.Unlock()
		return
	}

	if at < 0 {
		at = 0
	}
	ev := model.Event{Time: at, Type: evType, Params: params}
	if index != nil {
		ev.Index = *index
		ev.HasIndex = true
	}
	if duration > 0 {
		ev.Duration = duration
	}

	s.log = append(s.log, ev)
	if end := ev.End(); end > s.duration {
		s.duration = end
	}
	id := s.id
	dur := s.duration
	s.mu.Unlock()

	go func() {
		ctx := context.Background()
		if _, err := s.store.AppendEvent(ctx, id, ev); err != nil {
			slog.Error("Failed to push event", "show_id", id, "type", ev.Type, "error", err)
		}
		if err := s.store.UpdateShow(ctx, id, model.ShowUpdate{Duration: &dur}); err != nil {
			slog.Error("Failed to update show duration", "show_id", id, "error", err)
		}
	}()
}

// AddAudio registers an encoded take starting at the given time, decodes
// it asynchronously (gating readiness), and uploads the raw payload to
// blob storage (logged only; upload never gates readiness).
func (s *Show) AddAudio(data []byte, at float64) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return
	}
	if !s.isCreatorLocked() {
		slog.Warn("Cannot edit show if not authenticated as creator", "show_id", s.id)
		s.mu.Unlock()
		return
	}
	if at < 0 {
		at = 0
	}

	id := s.id
	gen := s.gen
	assetID := s.store.NewAudioID(id)
	s.assets[assetID] = &AudioAsset{ID: assetID, Time: at}
	s.pending++
	ems := s.refreshReadyLocked()
	s.mu.Unlock()

	s.fire(ems)

	go func() {
		if err := s.store.SetAudioTime(context.Background(), id, assetID, at); err != nil {
			slog.Error("Failed to write audio ref", "show_id", id, "asset_id", assetID, "error", err)
		}
	}()

	go s.finishAddAudio(gen, id, assetID, data)

	go func() {
		if err := s.store.UploadAudio(context.Background(), id, assetID, data); err != nil {
			slog.Error("Failed to upload audio file", "show_id", id, "asset_id", assetID, "error", err)
			return
		}
		slog.Info("Saved audio file", "show_id", id, "asset_id", assetID, "bytes", len(data))
	}()
}

func (s *Show) finishAddAudio(gen uint64, showID, assetID string, data []byte) {
	clip, err := s.decoder.Decode(data)
	if err != nil {
		slog.Error("Error decoding recorded audio", "show_id", showID, "asset_id", assetID, "error", err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	asset, ok := s.assets[assetID]
	if !ok {
		// erased while decoding
		s.mu.Unlock()
		return
	}
	asset.Clip = clip
	if end := asset.Time + clip.Duration(); end > s.duration {
		s.duration = end
	}
	s.pending--
	ems := s.refreshReadyLocked()
	id := s.id
	dur := s.duration
	s.mu.Unlock()

	s.fire(ems)

	go func() {
		if err := s.store.UpdateShow(context.Background(), id, model.ShowUpdate{Duration: &dur}); err != nil {
			slog.Error("Failed to update show duration", "show_id", id, "error", err)
		}
	}()
}

// SetTitle updates the title locally and pushes it to the store. No-op
// when unloaded, unchanged, or the caller is not the creator.
func (s *Show) SetTitle(title string) {
	s.mu.Lock()
	if !s.loaded || title == s.title {
		s.mu.Unlock()
		return
	}
	if !s.isCreatorLocked() {
		slog.Warn("Cannot edit show if not authenticated as creator", "show_id", s.id)
		s.mu.Unlock()
		return
	}
	s.title = title
	id := s.id
	s.mu.Unlock()

	go func() {
		if err := s.store.UpdateShow(context.Background(), id, model.ShowUpdate{Title: &title}); err != nil {
			slog.Error("Failed to update show title", "show_id", id, "error", err)
		}
	}()
}

func (s *Show) isCreatorLocked() bool {
	ident, ok := s.ids.Current()
	return ok && s.creatorID != "" && ident.ID == s.creatorID
}

func (s *Show) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Show) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Show) CreatorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creatorID
}

func (s *Show) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Show) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Show) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// IsCreator reports whether the current identity owns the loaded show.
func (s *Show) IsCreator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id != "" && s.isCreatorLocked()
}

// Events returns a copy of the event log in time order.
func (s *Show) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.log))
	copy(out, s.log)
	return out
}

// AudioAssets returns a snapshot of the audio registry.
func (s *Show) AudioAssets() []AudioAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AudioAsset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, *a)
	}
	return out
}
