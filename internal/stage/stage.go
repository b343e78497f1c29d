package stage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/puppetworks/puppetstage/internal/audio"
	"github.com/puppetworks/puppetstage/internal/events"
	"github.com/puppetworks/puppetstage/internal/model"
	"github.com/puppetworks/puppetstage/internal/show"
)

// EventSound is the event type the stage plays back as audio. Other event
// types are forwarded to the host handler to move puppets around.
const EventSound = "sound"

// Decoder adapts the audio package to the show's decoder interface.
type Decoder struct{}

func (Decoder) Decode(data []byte) (show.AudioClip, error) {
	return audio.Decode(data)
}

// Stage hosts one show and its recorder: it drives the per-frame update
// loop and turns dispatched events into sound effect playback. Visual
// event handling is delegated to the host via SetEventHandler.
type Stage struct {
	show     *show.Show
	recorder *show.Recorder
	sink     audio.Sink
	interval time.Duration

	mu         sync.Mutex
	effects    map[string]*audio.SoundEffect
	assetTimes map[string]float64
	started    map[string]bool
	sounding   map[soundKey]bool
	lastTime   float64
	handler    func(model.Event)

	subs []events.Subscription
}

// Options configures a Stage. TickInterval defaults to 16ms, roughly one
// render frame.
type Options struct {
	TickInterval time.Duration
}

func New(s *show.Show, r *show.Recorder, sink audio.Sink, opts Options) *Stage {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	if sink == nil {
		sink = audio.DiscardSink{}
	}

	st := &Stage{
		show:       s,
		recorder:   r,
		sink:       sink,
		interval:   interval,
		effects:    make(map[string]*audio.SoundEffect),
		assetTimes: make(map[string]float64),
		started:    make(map[string]bool),
		sounding:   make(map[soundKey]bool),
	}

	st.subs = append(st.subs,
		s.On(show.EventDispatch, st.handleEvent),
		s.On(show.EventPause, func(any) { st.stopAll() }),
		s.On(show.EventReady, func(any) { st.rebuildEffects() }),
		s.On(show.EventUnready, func(any) { st.clearEffects() }),
		s.On(show.EventUnload, func(any) { st.clearEffects() }),
	)
	return st
}

// Show returns the hosted show.
func (st *Stage) Show() *show.Show {
	return st.show
}

// Recorder returns the hosted recorder.
func (st *Stage) Recorder() *show.Recorder {
	return st.recorder
}

// SetEventHandler installs the callback that receives non-sound events.
func (st *Stage) SetEventHandler(h func(model.Event)) {
	st.mu.Lock()
	st.handler = h
	st.mu.Unlock()
}

// Run drives the update loop until the context is canceled.
func (st *Stage) Run(ctx context.Context) {
	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Tick()
		}
	}
}

// Tick advances the show by one frame: dispatch elapsed events, then line
// up recorded takes whose window covers the playhead.
func (st *Stage) Tick() {
	st.show.Update()
	st.syncTakes()
}

// Close detaches the stage from its show.
func (st *Stage) Close() {
	for _, sub := range st.subs {
		st.show.Off(sub)
	}
	st.stopAll()
}

// handleEvent routes one dispatched event. Events are ignored while a take
// is being recorded; the performer is producing them live.
func (st *Stage) handleEvent(payload any) {
	ev, ok := payload.(model.Event)
	if !ok {
		return
	}
	if st.recorder != nil && st.recorder.Recording() {
		return
	}

	if ev.Type == EventSound {
		st.playSound(ev)
		return
	}

	st.mu.Lock()
	h := st.handler
	st.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// soundKey identifies one occurrence of a sound in the log, so re-dispatched
// interval events start a voice once per window rather than once per frame.
type soundKey struct {
	name string
	time float64
}

func (st *Stage) playSound(ev model.Event) {
	// A paused show stays silent even though the dispatch pass re-emits
	// elapsed events for state re-sync.
	if !st.show.Playing() {
		return
	}

	name, _ := ev.Params["name"].(string)
	if name == "" {
		name, _ = ev.Params["audio_id"].(string)
	}
	t := st.show.CurrentTime()

	st.mu.Lock()
	st.rearmLocked(t)
	eff := st.effects[name]
	key := soundKey{name: name, time: ev.Time}
	if eff != nil {
		if st.sounding[key] {
			st.mu.Unlock()
			return
		}
		st.sounding[key] = true
	}
	st.mu.Unlock()

	if eff == nil {
		slog.Warn("No sound effect for event", "name", name, "time", ev.Time)
		return
	}

	// Joining mid-window starts the voice partway in so it stays in sync
	// with the rest of the show.
	offset := t - ev.Time
	if offset < 0 {
		offset = 0
	}
	eff.Play(offset)
}

// rearmLocked resets per-playthrough state when the playhead moves
// backwards (a rewind or replay). Callers hold st.mu.
func (st *Stage) rearmLocked(t float64) {
	if t < st.lastTime {
		st.started = make(map[string]bool)
		st.sounding = make(map[soundKey]bool)
	}
	st.lastTime = t
}

// syncTakes starts recorded takes whose window covers the playhead. Takes
// live in the audio registry rather than the event log, so the dispatch
// pass never sees them.
func (st *Stage) syncTakes() {
	if !st.show.Playing() {
		return
	}
	if st.recorder != nil && st.recorder.Recording() {
		return
	}
	t := st.show.CurrentTime()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.rearmLocked(t)

	for id, start := range st.assetTimes {
		eff := st.effects[id]
		if eff == nil || st.started[id] {
			continue
		}
		if t >= start && t < start+eff.Duration() {
			st.started[id] = true
			eff.Play(t - start)
		}
	}
}

// rebuildEffects turns the show's decoded audio registry into playable
// sound effects, keyed by asset id.
func (st *Stage) rebuildEffects() {
	assets := st.show.AudioAssets()

	st.mu.Lock()
	defer st.mu.Unlock()

	for _, asset := range assets {
		if _, exists := st.effects[asset.ID]; exists {
			continue
		}
		clip, ok := asset.Clip.(*audio.Clip)
		if !ok || clip == nil {
			continue
		}
		st.effects[asset.ID] = audio.NewSoundEffect(asset.ID, clip, st.sink)
		st.assetTimes[asset.ID] = asset.Time
		slog.Debug("Registered sound effect", "asset_id", asset.ID, "at", asset.Time)
	}
}

// AddEffect registers a named effect for sound events, typically loaded
// from a static asset catalog at startup.
func (st *Stage) AddEffect(eff *audio.SoundEffect) {
	st.mu.Lock()
	st.effects[eff.Name()] = eff
	st.mu.Unlock()
}

func (st *Stage) stopAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, eff := range st.effects {
		eff.Stop()
	}
	st.started = make(map[string]bool)
	st.sounding = make(map[soundKey]bool)
}

// clearEffects drops asset-backed effects. Named effects registered via
// AddEffect outlive the show they were loaded for.
func (st *Stage) clearEffects() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id := range st.assetTimes {
		if eff := st.effects[id]; eff != nil {
			eff.Stop()
			delete(st.effects, id)
		}
	}
	st.assetTimes = make(map[string]float64)
	st.started = make(map[string]bool)
	st.sounding = make(map[soundKey]bool)
	st.lastTime = 0
}
