package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/saviobatista/flightboard/internal/types"
)

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var destination, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flights ordered by scheduled time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := opts.client().List(cmd.Context(), destination, status)
			if err != nil {
				return err
			}
			return printFlights(cmd.OutOrStdout(), opts.Format, views)
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "filter by destination (case-insensitive substring)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (Scheduled|Boarding|Departed|Landed)")

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v, err := opts.client().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printFlights(cmd.OutOrStdout(), opts.Format, []types.FlightView{v})
		},
	}
}

// flightFlags are the editable fields shared by create and update
type flightFlags struct {
	number      string
	airline     string
	origin      string
	destination string
	gate        string
	scheduled   string
	estimated   string
	arrival     bool
	remarks     string
}

func (f *flightFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.number, "number", "n", "", "flight number")
	fs.StringVar(&f.airline, "airline", "", "airline (server default Generic)")
	fs.StringVar(&f.origin, "origin", "", "origin (server default TLV)")
	fs.StringVarP(&f.destination, "destination", "d", "", "destination")
	fs.StringVarP(&f.gate, "gate", "g", "", "gate")
	fs.StringVar(&f.scheduled, "scheduled", "", "scheduled time, RFC3339 or an offset from now such as +20m")
	fs.StringVar(&f.estimated, "estimated", "", "estimated time, RFC3339 or an offset from now")
	fs.BoolVar(&f.arrival, "arrival", false, "flight is an arrival")
	fs.StringVar(&f.remarks, "remarks", "", "free-form remarks")
}

// apply overlays the flags that were set on in
func (f *flightFlags) apply(fs *pflag.FlagSet, in *FlightInput, now time.Time) error {
	if fs.Changed("number") {
		in.FlightNumber = f.number
	}
	if fs.Changed("airline") {
		in.Airline = f.airline
	}
	if fs.Changed("origin") {
		in.Origin = f.origin
	}
	if fs.Changed("destination") {
		in.Destination = f.destination
	}
	if fs.Changed("gate") {
		in.Gate = f.gate
	}
	if fs.Changed("scheduled") {
		at, err := parseWhen(f.scheduled, now)
		if err != nil {
			return fmt.Errorf("invalid --scheduled: %w", err)
		}
		in.ScheduledTime = at
	}
	if fs.Changed("estimated") {
		if f.estimated == "" {
			in.EstimatedTime = nil
		} else {
			at, err := parseWhen(f.estimated, now)
			if err != nil {
				return fmt.Errorf("invalid --estimated: %w", err)
			}
			in.EstimatedTime = &at
		}
	}
	if fs.Changed("arrival") {
		in.IsArrival = f.arrival
	}
	if fs.Changed("remarks") {
		if f.remarks == "" {
			in.Remarks = nil
		} else {
			r := f.remarks
			in.Remarks = &r
		}
	}
	return nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions) *cobra.Command {
	flags := &flightFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a flight",
		Long: `Create a flight.

Example:
  flightctl create -n FB1001 -d LHR -g A1 --scheduled +2h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in FlightInput
			if err := flags.apply(cmd.Flags(), &in, opts.now()); err != nil {
				return err
			}
			v, err := opts.client().Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printFlights(cmd.OutOrStdout(), opts.Format, []types.FlightView{v})
		},
	}

	flags.register(cmd.Flags())
	for _, name := range []string{"number", "destination", "gate", "scheduled"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	flags := &flightFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a flight",
		Long: `Change fields of a flight. Fields without a flag keep their current value.

Example:
  flightctl update 3 --gate B7 --scheduled +45m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := opts.client()
			current, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			in := inputFromView(current)
			if err := flags.apply(cmd.Flags(), &in, opts.now()); err != nil {
				return err
			}
			v, err := c.Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return printFlights(cmd.OutOrStdout(), opts.Format, []types.FlightView{v})
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := opts.client().Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted flight %d\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid flight id %q", s)
	}
	return id, nil
}

// parseWhen accepts an RFC3339 instant or a signed offset from now
func parseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d).UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return at.UTC(), nil
}
