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

var recordCmd = &cobra.Command{
	Use:   "record [show-id]",
	Short: "Record a new take for a show",
	Long: `Record a microphone take. With a show id the take replaces that
show's content; without one a fresh show is created first.

Recording starts once the microphone is acquired and runs until Ctrl+C.
An input grouped with the configured HMD is preferred over the system
default.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := newEngine(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer eng.Close()

		sh := eng.stage.Show()
		rec := eng.stage.Recorder()

		if len(args) == 1 {
			loaded := make(chan struct{}, 1)
			loadFailed := make(chan struct{}, 1)
			sub1 := sh.On(show.EventLoad, func(any) {
				select {
				case loaded <- struct{}{}:
				default:
				}
			})
			sub2 := sh.On(show.EventError, func(any) {
				select {
				case loadFailed <- struct{}{}:
				default:
				}
			})
			sh.Load(args[0])
			select {
			case <-loaded:
			case <-loadFailed:
				sh.Off(sub1)
				sh.Off(sub2)
				return fmt.Errorf("failed to load show %s", args[0])
			case <-time.After(30 * time.Second):
				sh.Off(sub1)
				sh.Off(sub2)
				return fmt.Errorf("timed out loading show %s", args[0])
			case <-ctx.Done():
				return ctx.Err()
			}
			sh.Off(sub1)
			sh.Off(sub2)
		} else {
			sh.Create()
			slog.Info("Created show", "show_id", sh.ID())
		}

		micReady := make(chan struct{}, 1)
		micFailed := make(chan error, 1)
		sub3 := rec.On(show.RecorderReady, func(any) {
			select {
			case micReady <- struct{}{}:
			default:
			}
		})
		sub4 := rec.On(show.RecorderError, func(payload any) {
			err, _ := payload.(error)
			select {
			case micFailed <- err:
			default:
			}
		})
		defer rec.Off(sub3)
		defer rec.Off(sub4)

		rec.Enable()
		defer rec.Disable()

		select {
		case <-micReady:
		case err := <-micFailed:
			return fmt.Errorf("failed to acquire microphone: %w", err)
		case <-time.After(10 * time.Second):
			return fmt.Errorf("timed out waiting for microphone")
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := rec.Start(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		slog.Info("Recording... Press Ctrl+C to stop", "show_id", sh.ID())

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		slog.Info("Stopping recording...")
		rec.Stop()

		// Uploads are fire-and-forget; give them a moment before tearing
		// the store down.
		time.Sleep(2 * time.Second)
		slog.Info("Take saved", "show_id", sh.ID(), "duration", rec.CurrentTime())
		return nil
	},
}
