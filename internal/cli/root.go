package cli

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// DefaultServer is used when neither --server nor FLIGHTBOARD_URL is set
const DefaultServer = "http://localhost:8080"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Format  string // "json" | "text"
	Timeout time.Duration

	now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) client() *Client {
	return NewClient(o.Server, o.Timeout)
}

// NewRootCommand creates the root command for flightctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{now: time.Now}

	server := os.Getenv("FLIGHTBOARD_URL")
	if server == "" {
		server = DefaultServer
	}

	cmd := &cobra.Command{
		Use:   "flightctl",
		Short: "flightctl - FlightBoard command line client",
		Long:  "Manage flights on a FlightBoard server and watch its live event feed.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", server, "FlightBoard server URL (env FLIGHTBOARD_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewTailNATSCommand(opts))
	cmd.AddCommand(NewCachedCommand(opts))

	return cmd
}
