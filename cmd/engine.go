package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/puppetworks/puppetstage/internal/audio"
	"github.com/puppetworks/puppetstage/internal/config"
	"github.com/puppetworks/puppetstage/internal/show"
	"github.com/puppetworks/puppetstage/internal/stage"
	"github.com/puppetworks/puppetstage/internal/store"
	"github.com/puppetworks/puppetstage/internal/store/cassandra"
)

// engine bundles everything a command needs to drive shows, plus the
// cleanup for the resources behind it.
type engine struct {
	stage   *stage.Stage
	cleanup []func()
}

func (e *engine) Close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// newShowStore builds the configured persistence backend.
func newShowStore(cfg *config.Config) (store.ShowStore, func(), error) {
	switch cfg.Store.Backend {
	case "cassandra":
		client, err := cassandra.NewClient(cassandra.Config{
			Hosts:       cfg.Store.Cassandra.Hosts,
			Keyspace:    cfg.Store.Cassandra.Keyspace,
			Consistency: cfg.Store.Cassandra.Consistency,
			Timeout:     cfg.Store.Cassandra.Timeout,
			Username:    cfg.Store.Cassandra.Username,
			Password:    cfg.Store.Cassandra.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to cassandra: %w", err)
		}
		return cassandra.NewRepository(client, cfg.Store.Cassandra.Timeout), client.Close, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

// newEngine wires store, identity, show, recorder and stage together.
// withMic controls whether a capture backend is opened; playback-only
// commands skip it so they run on machines without audio input.
func newEngine(ctx context.Context, cfg *config.Config, withMic bool) (*engine, error) {
	e := &engine{}

	st, closeStore, err := newShowStore(cfg)
	if err != nil {
		return nil, err
	}
	e.cleanup = append(e.cleanup, closeStore)

	ids := store.NewMemoryIdentity()
	sh := show.New(show.Options{
		Store:    st,
		Identity: ids,
		Decoder:  stage.Decoder{},
	})
	if _, err := sh.Authenticate(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	var sink audio.Sink = audio.DiscardSink{}
	if cfg.Audio.Playback {
		speaker, err := audio.InitSpeaker(cfg.Audio.SampleRate)
		if err != nil {
			slog.Warn("Speaker unavailable, sound effects are silent", "error", err)
		} else {
			sink = speaker
		}
	}

	var backend audio.CaptureBackend
	if withMic {
		pa, err := audio.NewPortAudioBackend()
		if err != nil {
			slog.Warn("Capture backend unavailable, recording disabled", "error", err)
		} else {
			backend = pa
			e.cleanup = append(e.cleanup, func() {
				if err := pa.Close(); err != nil {
					slog.Warn("Failed to close capture backend", "error", err)
				}
			})
		}
	}

	hint, err := regexp.Compile("(?i)" + regexp.QuoteMeta(cfg.Audio.HMDHint))
	if err != nil {
		hint = nil
	}
	rec := show.NewRecorder(sh, backend, show.RecorderOptions{
		SampleRate: cfg.Audio.SampleRate,
		HMDHint:    hint,
	})

	e.stage = stage.New(sh, rec, sink, stage.Options{
		TickInterval: cfg.Stage.TickInterval,
	})
	e.cleanup = append(e.cleanup, e.stage.Close)
	return e, nil
}
