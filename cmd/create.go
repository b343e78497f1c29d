package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new empty show",
	Long: `Create a new show owned by this session's identity and print its id.
Use the id with 'record' and 'play'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		eng, err := newEngine(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer eng.Close()

		sh := eng.stage.Show()
		sh.Create()
		if title != "" {
			sh.SetTitle(title)
		}

		// Remote writes are fire-and-forget; give them a moment to land.
		time.Sleep(time.Second)

		fmt.Println(sh.ID())
		return nil
	},
}

func init() {
	createCmd.Flags().StringP("title", "t", "", "title for the new show")
}
