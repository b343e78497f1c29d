package audio

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Clip is a fully decoded audio asset. Shows keep one per audio asset and
// sound effects stream voices out of it.
type Clip struct {
	buf *beep.Buffer
}

// Decode sniffs the container (WAV or MP3) and decodes the whole payload
// into memory.
func Decode(data []byte) (*Clip, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("audio payload too short (%d bytes)", len(data))
	}

	var (
		streamer beep.Streamer
		format   beep.Format
		err      error
	)
	rc := io.NopCloser(bytes.NewReader(data))
	if bytes.HasPrefix(data, []byte("RIFF")) {
		streamer, format, err = wav.Decode(rc)
	} else {
		streamer, format, err = mp3.Decode(rc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	return &Clip{buf: buf}, nil
}

// FromSamples wraps raw mono capture samples into a Clip.
func FromSamples(samples []float32, sampleRate int) *Clip {
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	buf := beep.NewBuffer(format)
	buf.Append(&sampleStreamer{samples: samples})
	return &Clip{buf: buf}
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	return c.buf.Format().SampleRate.D(c.buf.Len()).Seconds()
}

func (c *Clip) Format() beep.Format {
	return c.buf.Format()
}

// Streamer returns a voice starting offset seconds into the clip. Offsets
// past the end yield an empty streamer.
func (c *Clip) Streamer(offset float64) beep.Streamer {
	from := c.buf.Format().SampleRate.N(time.Duration(offset * float64(time.Second)))
	if from < 0 {
		from = 0
	}
	if from > c.buf.Len() {
		from = c.buf.Len()
	}
	return c.buf.Streamer(from, c.buf.Len())
}

// EncodeWAV renders the clip back into a WAV payload, used to persist
// recorded takes.
func EncodeWAV(c *Clip) ([]byte, error) {
	var ws memWriteSeeker
	err := wav.Encode(&ws, c.buf.Streamer(0, c.buf.Len()), c.buf.Format())
	if err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	return ws.data, nil
}

// sampleStreamer adapts a mono []float32 capture buffer to beep.Streamer.
type sampleStreamer struct {
	samples []float32
	pos     int
}

func (s *sampleStreamer) Stream(out [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for n < len(out) && s.pos < len(s.samples) {
		v := float64(s.samples[s.pos])
		out[n][0] = v
		out[n][1] = v
		s.pos++
		n++
	}
	return n, true
}

func (s *sampleStreamer) Err() error {
	return nil
}

// memWriteSeeker is the in-memory io.WriteSeeker wav.Encode needs to patch
// the header after writing.
type memWriteSeeker struct {
	data []byte
	pos  int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.data) {
		if need > cap(m.data) {
			grown := make([]byte, need, need*2)
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:need]
		}
	}
	copy(m.data[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	m.pos = int(next)
	return next, nil
}
