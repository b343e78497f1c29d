package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gopxl/beep/v2"
)

// Sink is where sound effect voices go. The speaker sink plays them out
// loud; a nil-safe discard sink keeps headless runs and tests silent.
type Sink interface {
	Play(s beep.Streamer)
}

// SoundEffect plays zero or more overlapping voices of one clip. Voices
// run until their streamer drains or Stop cuts them all off.
type SoundEffect struct {
	name string
	sink Sink

	mu     sync.Mutex
	clip   *Clip
	voices []*beep.Ctrl
}

func NewSoundEffect(name string, clip *Clip, sink Sink) *SoundEffect {
	return &SoundEffect{name: name, clip: clip, sink: sink}
}

// LoadSoundEffect fetches and decodes an audio asset by URL.
func LoadSoundEffect(ctx context.Context, name, url string, sink Sink) (*SoundEffect, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	clip, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return NewSoundEffect(name, clip, sink), nil
}

func (e *SoundEffect) Name() string {
	return e.name
}

// Duration returns the clip length in seconds, 0 while unloaded.
func (e *SoundEffect) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clip == nil {
		return 0
	}
	return e.clip.Duration()
}

// Play starts a new voice offset seconds into the clip. Offsets at or past
// the end are a no-op, which lets playback listeners fire-and-forget events
// whose sound window has already closed.
func (e *SoundEffect) Play(offset float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clip == nil || offset >= e.clip.Duration() {
		return
	}

	ctrl := &beep.Ctrl{Streamer: e.clip.Streamer(offset)}
	e.voices = append(e.voices, ctrl)
	if e.sink != nil {
		e.sink.Play(ctrl)
	}
}

// Stop silences every active voice.
func (e *SoundEffect) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Live streamers are mutated by the speaker's mixing goroutine, so
	// take its lock when the sink exposes one.
	if l, ok := e.sink.(sync.Locker); ok {
		l.Lock()
		defer l.Unlock()
	}
	for _, ctrl := range e.voices {
		ctrl.Streamer = nil
	}
	e.voices = e.voices[:0]
}
