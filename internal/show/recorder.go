package show

import (
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/puppetworks/puppetstage/internal/audio"
	"github.com/puppetworks/puppetstage/internal/clock"
	"github.com/puppetworks/puppetstage/internal/events"
)

// Recorder event names. Payloads: error carries the error, the rest nil.
const (
	RecorderReady = "ready"
	RecorderError = "error"
	RecorderStart = "start"
	RecorderStop  = "stop"
	RecorderReset = "reset"
)

// ErrNotReady is returned by Start when no usable input has been acquired.
// This is the one hard failure in the engine: calling Start before the
// ready notification is a sequencing bug in the host, not a user path.
var ErrNotReady = errors.New("recorder: not ready to record")

// Recorder captures a microphone take while mirroring user interactions
// into the attached show's event log. States: disabled, enabling, ready,
// recording; Disable is reachable from all of them.
type Recorder struct {
	emitter *events.Emitter
	show    *Show
	backend audio.CaptureBackend
	clock   clock.Clock

	sampleRate int
	hmdHint    *regexp.Regexp

	mu        sync.Mutex
	enabled   bool
	ready     bool
	recording bool
	startTime time.Time
	endTime   time.Time
	stream    audio.CaptureStream
	deviceID  string
}

// RecorderOptions configures a Recorder. Clock defaults to the system
// clock, SampleRate to 48kHz, HMDHint to a case-insensitive "vive" match.
type RecorderOptions struct {
	Clock      clock.Clock
	SampleRate int
	HMDHint    *regexp.Regexp
}

func NewRecorder(s *Show, backend audio.CaptureBackend, opts RecorderOptions) *Recorder {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	sr := opts.SampleRate
	if sr == 0 {
		sr = 48000
	}
	hint := opts.HMDHint
	if hint == nil {
		hint = regexp.MustCompile(`(?i)vive`)
	}
	return &Recorder{
		emitter:    events.NewEmitter(),
		show:       s,
		backend:    backend,
		clock:      c,
		sampleRate: sr,
		hmdHint:    hint,
	}
}

func (r *Recorder) On(name string, handler events.Handler) events.Subscription {
	return r.emitter.On(name, handler)
}

func (r *Recorder) Off(sub events.Subscription) {
	r.emitter.Off(sub)
}

// Enable requests device access and acquires an input stream. The enabled
// flag flips immediately so only one acquisition runs; readiness follows
// asynchronously via the ready or error notification.
func (r *Recorder) Enable() {
	r.mu.Lock()
	if r.enabled {
		r.mu.Unlock()
		return
	}
	r.enabled = true
	r.mu.Unlock()

	go r.acquire()
}

func (r *Recorder) acquire() {
	if r.backend == nil {
		err := errors.New("no capture backend available")
		slog.Error("Cannot enable recorder", "error", err)
		r.emitter.Emit(RecorderError, err)
		return
	}

	devices, err := r.backend.Devices()
	if err != nil {
		slog.Error("Cannot enumerate audio devices", "error", err)
		r.emitter.Emit(RecorderError, err)
		return
	}

	selected, err := audio.SelectInput(devices, r.hmdHint)
	if err != nil {
		slog.Error("Cannot select audio input", "error", err)
		r.emitter.Emit(RecorderError, err)
		return
	}

	stream, err := r.backend.Open(selected.ID, r.sampleRate)
	if err != nil {
		slog.Error("Cannot access microphone", "device", selected.Name, "error", err)
		r.emitter.Emit(RecorderError, err)
		return
	}

	r.mu.Lock()
	if !r.enabled {
		// disabled while the stream was being acquired
		r.mu.Unlock()
		stream.Close()
		return
	}
	if r.stream != nil {
		r.stream.Close()
	}
	r.stream = stream
	r.deviceID = selected.ID
	wasReady := r.ready
	r.ready = true
	r.mu.Unlock()

	slog.Info("Acquired microphone", "device", selected.Name)
	if !wasReady {
		r.emitter.Emit(RecorderReady, nil)
	}
}

// Disable stops any active recording and releases the capture device. It
// is the only release path for the microphone.
func (r *Recorder) Disable() {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.Stop()

	r.mu.Lock()
	if r.stream != nil {
		r.stream.Close()
		r.stream = nil
	}
	r.deviceID = ""
	r.ready = false
	r.enabled = false
	r.mu.Unlock()
}

// Start begins a new take. It resets first: there is no appending to an
// existing take, so any prior show content is erased.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording || !r.enabled {
		r.mu.Unlock()
		return nil
	}
	if !r.ready {
		r.mu.Unlock()
		return ErrNotReady
	}
	r.mu.Unlock()

	r.Reset()

	r.mu.Lock()
	stream := r.stream
	r.recording = true
	r.startTime = r.clock.Now()
	r.endTime = time.Time{}
	r.mu.Unlock()

	if stream != nil {
		if err := stream.Start(); err != nil {
			r.mu.Lock()
			r.recording = false
			r.mu.Unlock()
			slog.Error("Cannot start capture", "error", err)
			r.emitter.Emit(RecorderError, err)
			return err
		}
	}

	r.emitter.Emit(RecorderStart, nil)
	return nil
}

// Stop finalizes the current take into a WAV payload and hands it to the
// show, which takes ownership. No-op while not recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.recording || !r.enabled {
		r.mu.Unlock()
		return
	}
	r.recording = false
	r.endTime = r.clock.Now()
	stream := r.stream
	duration := r.endTime.Sub(r.startTime).Seconds()
	r.mu.Unlock()

	r.show.Pause()

	if stream != nil {
		samples, err := stream.Stop()
		if err != nil {
			slog.Error("Failed to stop capture", "error", err)
			r.emitter.Emit(RecorderError, err)
		} else {
			clip := audio.FromSamples(samples, r.sampleRate)
			data, err := audio.EncodeWAV(clip)
			if err != nil {
				slog.Error("Failed to encode take", "error", err)
				r.emitter.Emit(RecorderError, err)
			} else {
				r.show.AddAudio(data, duration)
			}
		}
	}

	r.emitter.Emit(RecorderStop, nil)
}

// Reset discards the take in progress and asks the show to erase all prior
// content, leaving a clean slate for the next Start.
func (r *Recorder) Reset() {
	r.Stop()

	r.show.Pause()
	r.show.Rewind()

	r.mu.Lock()
	r.startTime = time.Time{}
	r.endTime = time.Time{}
	r.mu.Unlock()

	r.show.Erase()

	r.emitter.Emit(RecorderReset, nil)
}

// RecordEvent forwards a user interaction into the show's event log,
// stamped with the recorder's current take time. No-op while not enabled.
func (r *Recorder) RecordEvent(evType string, params map[string]any, index *int, duration float64) {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	at := r.currentTimeLocked()
	r.mu.Unlock()

	r.show.AddEvent(evType, params, index, duration, at)
}

func (r *Recorder) currentTimeLocked() float64 {
	if r.startTime.IsZero() {
		return 0
	}
	if r.recording {
		return r.clock.Now().Sub(r.startTime).Seconds()
	}
	return r.endTime.Sub(r.startTime).Seconds()
}

// CurrentTime is the elapsed take time in seconds.
func (r *Recorder) CurrentTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTimeLocked()
}

func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Ready reports whether a usable input source has been acquired.
func (r *Recorder) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled && r.ready
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
