package cmd

import (
	"fmt"
	"regexp"

	"github.com/puppetworks/puppetstage/internal/audio"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices and the input recording would pick",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := audio.NewPortAudioBackend()
		if err != nil {
			return fmt.Errorf("failed to initialize audio: %w", err)
		}
		defer backend.Close()

		devices, err := backend.Devices()
		if err != nil {
			return fmt.Errorf("failed to enumerate devices: %w", err)
		}

		hint, err := regexp.Compile("(?i)" + regexp.QuoteMeta(cfg.Audio.HMDHint))
		if err != nil {
			hint = nil
		}
		selected, selErr := audio.SelectInput(devices, hint)

		for _, dev := range devices {
			marker := "  "
			if selErr == nil && dev.Kind == audio.DeviceInput && dev.ID == selected.ID {
				marker = "* "
			}
			def := ""
			if dev.Default {
				def = " (default)"
			}
			fmt.Printf("%s%-7s %-40s group=%s%s\n", marker, dev.Kind, dev.Name, dev.Group, def)
		}
		if selErr != nil {
			fmt.Println("\nNo usable input device found.")
		}
		return nil
	},
}
