package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/puppetworks/puppetstage/internal/store"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [show-id]",
	Short: "Print a stored show's metadata and timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showID := args[0]

		st, closeStore, err := newShowStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		rec, err := st.GetShow(cmd.Context(), showID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("show %s not found", showID)
			}
			return fmt.Errorf("failed to fetch show: %w", err)
		}

		fmt.Printf("ID:       %s\n", rec.ID)
		fmt.Printf("Title:    %s\n", rec.Title)
		fmt.Printf("Creator:  %s\n", rec.Creator)
		fmt.Printf("Duration: %.2fs\n", rec.Duration)
		fmt.Printf("Created:  %s\n", rec.CreateTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Modified: %s\n", rec.ModifyTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Events:   %d\n", len(rec.Events))
		fmt.Printf("Audio:    %d take(s)\n", len(rec.Audio))

		evs := make([]struct {
			key string
			t   float64
		}, 0, len(rec.Events))
		for key, ev := range rec.Events {
			evs = append(evs, struct {
				key string
				t   float64
			}{key, ev.Time})
		}
		sort.Slice(evs, func(i, j int) bool { return evs[i].t < evs[j].t })

		for _, e := range evs {
			ev := rec.Events[e.key]
			if ev.Duration > 0 {
				fmt.Printf("  %8.3fs  %-12s (%.2fs)\n", ev.Time, ev.Type, ev.Duration)
			} else {
				fmt.Printf("  %8.3fs  %-12s\n", ev.Time, ev.Type)
			}
		}
		return nil
	},
}
