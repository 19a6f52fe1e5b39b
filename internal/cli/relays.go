package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/journal"
	"github.com/saviobatista/flightboard/internal/nats"
	"github.com/saviobatista/flightboard/internal/redis"
)

// NewJournalCommand creates the journal command, which prints the events a
// server journaled on one UTC day.
func NewJournalCommand(opts *RootOptions) *cobra.Command {
	var (
		dir string
		day string
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the events journaled on a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when := opts.now().UTC()
			if day != "" {
				t, err := time.Parse("2006-01-02", day)
				if err != nil {
					return fmt.Errorf("invalid --day %q: want YYYY-MM-DD", day)
				}
				when = t
			}

			entries, err := journal.Read(dir, when)
			if err != nil {
				return err
			}
			for _, e := range entries {
				msg := broadcast.Message{Name: e.Event, Data: e.Data}
				if opts.Format == "text" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s ", e.At.UTC().Format(time.RFC3339))
				}
				if err := printEvent(cmd.OutOrStdout(), opts.Format, msg); err != nil {
					return err
				}
			}
			return nil
		},
	}

	dirDefault := os.Getenv("JOURNAL_DIR")
	if dirDefault == "" {
		dirDefault = "journal"
	}
	cmd.Flags().StringVar(&dir, "dir", dirDefault, "journal directory (env JOURNAL_DIR)")
	cmd.Flags().StringVar(&day, "day", "", "UTC day to read as YYYY-MM-DD (default today)")

	return cmd
}

// NewTailNATSCommand creates the tail-nats command, which follows the events
// a server relays to its JetStream stream.
func NewTailNATSCommand(opts *RootOptions) *cobra.Command {
	var (
		url   string
		count int
	)

	cmd := &cobra.Command{
		Use:   "tail-nats",
		Short: "Print flight events relayed to NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := nats.New(url)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			events := make(chan broadcast.Message, 64)
			sub, err := client.SubscribeEvents(func(msg broadcast.Message) {
				select {
				case events <- msg:
				case <-ctx.Done():
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = sub.Unsubscribe() }()

			for seen := 0; count <= 0 || seen < count; seen++ {
				select {
				case <-ctx.Done():
					return nil
				case msg := <-events:
					if err := printEvent(cmd.OutOrStdout(), opts.Format, msg); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	urlDefault := os.Getenv("NATS_URL")
	if urlDefault == "" {
		urlDefault = "nats://localhost:4222"
	}
	cmd.Flags().StringVar(&url, "nats-url", urlDefault, "NATS server URL (env NATS_URL)")
	cmd.Flags().IntVarP(&count, "count", "c", 0, "exit after this many events (0 follows until interrupted)")

	return cmd
}

// NewCachedCommand creates the cached command, which prints the last state
// of a flight as relayed to Redis.
func NewCachedCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "cached <id>",
		Short: "Print the last state of a flight relayed to Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			client, err := redis.New(addr, "")
			if err != nil {
				return err
			}
			defer client.Close()

			data, err := client.Snapshot(cmd.Context(), id)
			if err != nil {
				return err
			}
			if data == nil {
				return fmt.Errorf("no cached state for flight %d", id)
			}
			return printEvent(cmd.OutOrStdout(), opts.Format, broadcast.Message{Name: "cached", Data: data})
		},
	}

	addrDefault := os.Getenv("REDIS_ADDR")
	if addrDefault == "" {
		addrDefault = "localhost:6379"
	}
	cmd.Flags().StringVar(&addr, "redis-addr", addrDefault, "Redis address (env REDIS_ADDR)")

	return cmd
}
