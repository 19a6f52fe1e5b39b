package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/saviobatista/flightboard/internal/status"
)

func TestFlightView_JSONShape(t *testing.T) {
	remarks := "gate change"
	flight := Flight{
		ID:            7,
		FlightNumber:  "FB1002",
		Airline:       "Generic",
		Origin:        "TLV",
		Destination:   "AMS",
		ScheduledTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Gate:          "B2",
		LastUpdatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Remarks:       &remarks,
		Revision:      3,
	}

	data, err := json.Marshal(flight.View(time.Date(2025, 6, 1, 11, 40, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Failed to marshal FlightView: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal FlightView: %v", err)
	}

	expected := []string{
		"id", "flightNumber", "airline", "origin", "destination", "scheduledTime",
		"estimatedTime", "gate", "isArrival", "lastUpdatedAt", "remarks", "status",
	}
	if len(fields) != len(expected) {
		t.Errorf("Expected %d fields, got %d: %v", len(expected), len(fields), fields)
	}
	for _, key := range expected {
		if _, ok := fields[key]; !ok {
			t.Errorf("Missing field %q", key)
		}
	}

	if fields["status"] != "Boarding" {
		t.Errorf("Expected status Boarding, got %v", fields["status"])
	}
	if fields["estimatedTime"] != nil {
		t.Errorf("Expected null estimatedTime, got %v", fields["estimatedTime"])
	}
	if fields["scheduledTime"] != "2025-06-01T12:00:00Z" {
		t.Errorf("Unexpected scheduledTime encoding: %v", fields["scheduledTime"])
	}
}

func TestFlight_RevisionNotSerialized(t *testing.T) {
	data, err := json.Marshal(Flight{ID: 1, Revision: 9})
	if err != nil {
		t.Fatalf("Failed to marshal Flight: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal Flight: %v", err)
	}
	if _, ok := fields["Revision"]; ok {
		t.Error("Revision should not be serialized")
	}
	if _, ok := fields["revision"]; ok {
		t.Error("revision should not be serialized")
	}
}

func TestFlight_View_StatusFollowsClock(t *testing.T) {
	scheduled := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	flight := Flight{ScheduledTime: scheduled}

	tests := []struct {
		now  time.Time
		want status.Status
	}{
		{scheduled.Add(-2 * time.Hour), status.Scheduled},
		{scheduled.Add(-10 * time.Minute), status.Boarding},
		{scheduled.Add(10 * time.Minute), status.Departed},
		{scheduled.Add(2 * time.Hour), status.Landed},
	}

	for _, tt := range tests {
		if got := flight.View(tt.now).Status; got != tt.want.String() {
			t.Errorf("View(%v).Status = %s, want %s", tt.now, got, tt.want)
		}
	}
}

func TestDraft_UTC(t *testing.T) {
	tz := time.FixedZone("UTC+2", 2*60*60)
	est := time.Date(2025, 6, 1, 14, 30, 0, 0, tz)
	draft := Draft{
		FlightNumber:  "FB1",
		ScheduledTime: time.Date(2025, 6, 1, 14, 0, 0, 0, tz),
		EstimatedTime: &est,
	}

	utc := draft.UTC()

	if utc.ScheduledTime.Location() != time.UTC {
		t.Errorf("ScheduledTime not in UTC: %v", utc.ScheduledTime.Location())
	}
	if utc.ScheduledTime.Hour() != 12 {
		t.Errorf("Expected 12:00 UTC, got %v", utc.ScheduledTime)
	}
	if utc.EstimatedTime.Location() != time.UTC || utc.EstimatedTime.Hour() != 12 || utc.EstimatedTime.Minute() != 30 {
		t.Errorf("Unexpected EstimatedTime: %v", utc.EstimatedTime)
	}
	if est.Location() != tz {
		t.Error("UTC() must not modify the caller's EstimatedTime")
	}
}

func TestFlight_DraftRoundTrip(t *testing.T) {
	draft := Draft{
		FlightNumber:  "FB1001",
		Airline:       "Generic",
		Origin:        "TLV",
		Destination:   "LHR",
		ScheduledTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Gate:          "A1",
		IsArrival:     true,
	}
	flight := Flight{
		ID:            1,
		FlightNumber:  draft.FlightNumber,
		Airline:       draft.Airline,
		Origin:        draft.Origin,
		Destination:   draft.Destination,
		ScheduledTime: draft.ScheduledTime,
		Gate:          draft.Gate,
		IsArrival:     draft.IsArrival,
	}

	if got := flight.Draft(); got != draft {
		t.Errorf("Draft() = %+v, want %+v", got, draft)
	}
}

func TestDraft_Truncate(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	est := at.Add(time.Minute)
	d := Draft{ScheduledTime: at, EstimatedTime: &est}

	micro := d.Truncate(time.Microsecond)
	if micro.ScheduledTime.Nanosecond() != 123456000 {
		t.Errorf("Expected microsecond truncation, got %d ns", micro.ScheduledTime.Nanosecond())
	}
	if micro.EstimatedTime.Nanosecond() != 123456000 {
		t.Errorf("Expected estimated time truncated, got %d ns", micro.EstimatedTime.Nanosecond())
	}
	if est.Nanosecond() != 123456789 {
		t.Error("Truncate modified the caller's estimated time")
	}

	milli := d.Truncate(time.Millisecond)
	if milli.ScheduledTime.Nanosecond() != 123000000 {
		t.Errorf("Expected millisecond truncation, got %d ns", milli.ScheduledTime.Nanosecond())
	}

	if (Draft{ScheduledTime: at}).Truncate(time.Microsecond).EstimatedTime != nil {
		t.Error("Expected nil estimated time to stay nil")
	}
}
