// Package mongo stores flights in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/saviobatista/flightboard/internal/types"
)

const (
	flightsCollection  = "flights"
	countersCollection = "counters"
	flightsSequence    = "flights"
)

// flightDoc is the stored shape of a flight. BSON dates keep millisecond
// precision, so every instant is truncated to match before it is written.
type flightDoc struct {
	ID            int64      `bson:"_id"`
	FlightNumber  string     `bson:"flightNumber"`
	Airline       string     `bson:"airline"`
	Origin        string     `bson:"origin"`
	Destination   string     `bson:"destination"`
	ScheduledTime time.Time  `bson:"scheduledTime"`
	EstimatedTime *time.Time `bson:"estimatedTime"`
	Gate          string     `bson:"gate"`
	IsArrival     bool       `bson:"isArrival"`
	LastUpdatedAt time.Time  `bson:"lastUpdatedAt"`
	Remarks       *string    `bson:"remarks"`
	Revision      int64      `bson:"revision"`
}

func (d flightDoc) flight() types.Flight {
	f := types.Flight{
		ID:            d.ID,
		FlightNumber:  d.FlightNumber,
		Airline:       d.Airline,
		Origin:        d.Origin,
		Destination:   d.Destination,
		ScheduledTime: d.ScheduledTime.UTC(),
		Gate:          d.Gate,
		IsArrival:     d.IsArrival,
		LastUpdatedAt: d.LastUpdatedAt.UTC(),
		Remarks:       d.Remarks,
		Revision:      d.Revision,
	}
	if d.EstimatedTime != nil {
		est := d.EstimatedTime.UTC()
		f.EstimatedTime = &est
	}
	return f
}

// newDoc builds the document inserted for a new flight
func newDoc(id int64, d types.Draft, now time.Time) flightDoc {
	return flightDoc{
		ID:            id,
		FlightNumber:  d.FlightNumber,
		Airline:       d.Airline,
		Origin:        d.Origin,
		Destination:   d.Destination,
		ScheduledTime: d.ScheduledTime,
		EstimatedTime: d.EstimatedTime,
		Gate:          d.Gate,
		IsArrival:     d.IsArrival,
		LastUpdatedAt: now,
		Remarks:       d.Remarks,
		Revision:      1,
	}
}

// fields returns the mutable fields of a draft as a $set document
func fields(d types.Draft, now time.Time) bson.M {
	return bson.M{
		"flightNumber":  d.FlightNumber,
		"airline":       d.Airline,
		"origin":        d.Origin,
		"destination":   d.Destination,
		"scheduledTime": d.ScheduledTime,
		"estimatedTime": d.EstimatedTime,
		"gate":          d.Gate,
		"isArrival":     d.IsArrival,
		"lastUpdatedAt": now,
		"remarks":       d.Remarks,
	}
}

// Store implements the flight store on MongoDB. Flight number uniqueness is
// enforced by a unique index; ids come from a counters document.
type Store struct {
	client   *mongo.Client
	flights  *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

// Connect dials uri and opens the store in database dbName
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s, err := New(ctx, client.Database(dbName))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.client = client
	return s, nil
}

// New opens the store on db and ensures its indexes
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	s := &Store{
		flights:  db.Collection(flightsCollection),
		counters: db.Collection(countersCollection),
		now:      time.Now,
	}

	_, err := s.flights.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "flightNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("ux_flights_flight_number"),
		},
		{
			Keys:    bson.D{{Key: "scheduledTime", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_flights_scheduled_time"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

// SetClock overrides the clock used for LastUpdatedAt
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Close disconnects the client when the store owns it
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// FindAll returns flights ordered by scheduled time, optionally filtered by a
// case-insensitive destination substring
func (s *Store) FindAll(ctx context.Context, destination string) ([]types.Flight, error) {
	filter := bson.M{}
	if destination != "" {
		filter["destination"] = bson.M{"$regex": regexp.QuoteMeta(destination), "$options": "i"}
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduledTime", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.flights.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer cur.Close(ctx)

	flights := []types.Flight{}
	for cur.Next(ctx) {
		var doc flightDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode flight: %w", err)
		}
		flights = append(flights, doc.flight())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flights: %w", err)
	}
	return flights, nil
}

// FindByID returns the flight or types.ErrNotFound
func (s *Store) FindByID(ctx context.Context, id int64) (types.Flight, error) {
	var doc flightDoc
	err := s.flights.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Flight{}, types.ErrNotFound
	}
	if err != nil {
		return types.Flight{}, fmt.Errorf("failed to get flight: %w", err)
	}
	return doc.flight(), nil
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": flightsSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate flight id: %w", err)
	}
	return counter.Seq, nil
}

// Create inserts a flight or returns types.ErrConflict
func (s *Store) Create(ctx context.Context, d types.Draft) (types.Flight, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return types.Flight{}, err
	}

	doc := newDoc(id, d.Truncate(time.Millisecond), s.timestamp())
	if _, err := s.flights.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Flight{}, types.ErrConflict
		}
		return types.Flight{}, fmt.Errorf("failed to insert flight: %w", err)
	}
	return doc.flight(), nil
}

// Update replaces a flight's fields and bumps its revision in one operation
func (s *Store) Update(ctx context.Context, id int64, d types.Draft) (types.Flight, error) {
	var doc flightDoc
	err := s.flights.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields(d.Truncate(time.Millisecond), s.timestamp()), "$inc": bson.M{"revision": int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return types.Flight{}, types.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return types.Flight{}, types.ErrConflict
	case err != nil:
		return types.Flight{}, fmt.Errorf("failed to update flight: %w", err)
	}
	return doc.flight(), nil
}

// Delete removes a flight or returns types.ErrNotFound
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.flights.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete flight: %w", err)
	}
	if res.DeletedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

// Count returns the number of stored flights
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.flights.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count flights: %w", err)
	}
	return int(n), nil
}
