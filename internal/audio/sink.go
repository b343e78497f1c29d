package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerSink plays streamers through the system speaker. Init must be
// called once before the first Play.
type SpeakerSink struct{}

// InitSpeaker opens the output device at the given sample rate with a
// buffer sized for UI-latency playback.
func InitSpeaker(sampleRate int) (*SpeakerSink, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("failed to init speaker: %w", err)
	}
	return &SpeakerSink{}, nil
}

func (SpeakerSink) Play(s beep.Streamer) {
	speaker.Play(s)
}

// Lock/Unlock guard mutations of live streamers against the speaker's
// mixing goroutine.
func (SpeakerSink) Lock()   { speaker.Lock() }
func (SpeakerSink) Unlock() { speaker.Unlock() }

// DiscardSink drains nothing and plays nothing. Used headless and in tests.
type DiscardSink struct{}

func (DiscardSink) Play(s beep.Streamer) {}
