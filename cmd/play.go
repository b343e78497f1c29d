package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/puppetworks/puppetstage/internal/show"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [show-id]",
	Short: "Play a recorded show from the store",
	Long: `Load a show by id, wait for its audio assets to decode, then play it
from the top. Dispatched events are logged; sound events play through the
speaker when playback is enabled in the config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showID := args[0]

		ctx := cmd.Context()
		eng, err := newEngine(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer eng.Close()

		sh := eng.stage.Show()

		ready := make(chan struct{}, 1)
		failed := make(chan struct{}, 1)
		done := make(chan struct{}, 1)
		sub1 := sh.On(show.EventReady, func(any) {
			select {
			case ready <- struct{}{}:
			default:
			}
		})
		sub2 := sh.On(show.EventError, func(any) {
			select {
			case failed <- struct{}{}:
			default:
			}
		})
		sub3 := sh.On(show.EventPause, func(any) {
			select {
			case done <- struct{}{}:
			default:
			}
		})
		defer sh.Off(sub1)
		defer sh.Off(sub2)
		defer sh.Off(sub3)

		slog.Info("Loading show", "show_id", showID)
		sh.Load(showID)

		select {
		case <-ready:
		case <-failed:
			return fmt.Errorf("failed to load show %s", showID)
		case <-time.After(30 * time.Second):
			return fmt.Errorf("timed out waiting for show %s to become ready", showID)
		case <-ctx.Done():
			return ctx.Err()
		}

		slog.Info("Playing show", "show_id", showID, "title", sh.Title(), "duration", sh.Duration())
		sh.Rewind()
		sh.Play()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(cfg.Stage.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				eng.stage.Tick()
			case <-done:
				// Playback paused itself at the end of the show.
				slog.Info("Show finished", "show_id", showID)
				return nil
			case <-sigChan:
				sh.Pause()
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	},
}
