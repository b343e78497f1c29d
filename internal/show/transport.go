package show

import (
	"log/slog"
	"time"

	"github.com/puppetworks/puppetstage/internal/model"
)

// CurrentTime is the playhead position in seconds: elapsed since the play
// start instant while playing, the frozen span while paused, clamped to
// [0, duration]. It is always derived, never stored.
func (s *Show) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTimeLocked()
}

func (s *Show) currentTimeLocked() float64 {
	if s.playStart.IsZero() {
		return 0
	}
	var elapsed float64
	if s.playing {
		elapsed = s.clock.Now().Sub(s.playStart).Seconds()
	} else {
		elapsed = s.playEnd.Sub(s.playStart).Seconds()
	}
	if elapsed < 0 {
		return 0
	}
	if elapsed > s.duration {
		return s.duration
	}
	return elapsed
}

func (s *Show) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Play starts or resumes playback. Rejected with a logged error while the
// show is not ready; a playhead at the end rewinds first. Listeners see
// the first event batch immediately, without waiting for the next Update.
func (s *Show) Play() {
	s.mu.Lock()
	if !s.ready {
		slog.Error("Cannot play a show that is not ready", "show_id", s.id)
		s.mu.Unlock()
		return
	}
	if s.playing {
		s.mu.Unlock()
		return
	}

	resumeAt := s.currentTimeLocked()
	if resumeAt >= s.duration {
		resumeAt = 0
		s.resetScanLocked()
	}

	now := s.clock.Now()
	s.playing = true
	s.playStart = now.Add(-time.Duration(resumeAt * float64(time.Second)))
	s.playEnd = time.Time{}

	ems := []emission{{EventPlay, nil}}
	ems = append(ems, s.updateLocked()...)
	s.mu.Unlock()

	s.fire(ems)
}

// Pause freezes the playhead. No-op while not playing.
func (s *Show) Pause() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	ems := s.pauseLocked()
	ems = append(ems, s.updateLocked()...)
	s.mu.Unlock()

	s.fire(ems)
}

func (s *Show) pauseLocked() []emission {
	if !s.playing {
		return nil
	}
	s.playEnd = s.clock.Now()
	s.playing = false
	return []emission{{EventPause, nil}}
}

// Rewind moves the playhead to 0 regardless of play state and rescans.
func (s *Show) Rewind() {
	s.mu.Lock()
	ems := s.rewindLocked()
	ems = append(ems, s.updateLocked()...)
	s.mu.Unlock()

	s.fire(ems)
}

func (s *Show) rewindLocked() []emission {
	now := s.clock.Now()
	s.playStart = now
	s.playEnd = now
	s.resetScanLocked()
	return nil
}

func (s *Show) resetScanLocked() {
	s.scanIndex = 0
	s.lastScan = 0
	s.hasScanned = false
	s.active = s.active[:0]
}

// Update dispatches elapsed events. The host calls it once per render
// frame while a show is loaded.
func (s *Show) Update() {
	s.mu.Lock()
	ems := s.updateLocked()
	s.mu.Unlock()

	s.fire(ems)
}

// updateLocked is the dispatch step. It resumes from the last scan index
// when time has strictly advanced since the previous pass and rescans from
// the top otherwise (rewinds, seeks, clock skew). Within the scanned
// range, interval events re-dispatch while their window covers the
// playhead; instantaneous events collapse to the latest per (type, index).
func (s *Show) updateLocked() []emission {
	t := s.currentTimeLocked()

	start := 0
	if s.hasScanned && t > s.lastScan {
		start = s.scanIndex
	} else {
		s.active = s.active[:0]
	}

	var ems []emission

	// Interval events found by earlier passes stay live until their
	// window closes.
	kept := s.active[:0]
	for _, ev := range s.active {
		if ev.End() >= t {
			ems = append(ems, emission{EventDispatch, ev})
			kept = append(kept, ev)
		}
	}
	s.active = kept

	end := start
	for end < len(s.log) && s.log[end].Time <= t {
		end++
	}

	// Latest instantaneous occurrence per state channel wins; it is
	// dispatched at its own position so ordering stays time-ascending.
	latest := make(map[model.Key]int)
	for i := start; i < end; i++ {
		if s.log[i].Duration == 0 {
			latest[s.log[i].Key()] = i
		}
	}

	for i := start; i < end; i++ {
		ev := s.log[i]
		if ev.Duration > 0 {
			if ev.End() >= t {
				ems = append(ems, emission{EventDispatch, ev})
				s.active = append(s.active, ev)
			}
			continue
		}
		if latest[ev.Key()] == i {
			ems = append(ems, emission{EventDispatch, ev})
		}
	}

	s.scanIndex = end
	s.lastScan = t
	s.hasScanned = true

	if s.playing && t >= s.duration {
		// End of show. The dispatch pass above already ran, so pause
		// without re-entering it.
		ems = append(ems, s.pauseLocked()...)
	}

	return ems
}
