package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/types"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printFlights writes views as a table or a JSON array
func printFlights(w io.Writer, format string, views []types.FlightView) error {
	if format == "json" {
		return writeJSON(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLIGHT\tAIRLINE\tFROM\tTO\tGATE\tSCHEDULED\tSTATUS")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.FlightNumber, v.Airline, v.Origin, v.Destination, v.Gate,
			v.ScheduledTime.UTC().Format(time.RFC3339), v.Status)
	}
	return tw.Flush()
}

// printEvent writes one observer event as a line
func printEvent(w io.Writer, format string, msg broadcast.Message) error {
	if format == "json" {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if msg.Name == broadcast.EventFlightDeleted {
		var id int64
		if err := json.Unmarshal(msg.Data, &id); err != nil {
			return fmt.Errorf("malformed %s event: %w", msg.Name, err)
		}
		_, err := fmt.Fprintf(w, "%-20s #%d\n", msg.Name, id)
		return err
	}

	var v types.FlightView
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return fmt.Errorf("malformed %s event: %w", msg.Name, err)
	}
	_, err := fmt.Fprintf(w, "%-20s #%d %s %s gate %s %s\n",
		msg.Name, v.ID, v.FlightNumber, v.Destination, v.Gate, v.Status)
	return err
}
