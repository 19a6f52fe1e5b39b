package cli

import (
	"github.com/spf13/cobra"

	"github.com/saviobatista/flightboard/internal/broadcast"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print flight events as they are broadcast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seen := 0
			var printErr error
			err := opts.client().Watch(cmd.Context(), func(msg broadcast.Message) bool {
				if printErr = printEvent(cmd.OutOrStdout(), opts.Format, msg); printErr != nil {
					return false
				}
				seen++
				return count <= 0 || seen < count
			})
			if err != nil {
				return err
			}
			return printErr
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 0, "exit after this many events (0 watches until interrupted)")

	return cmd
}
