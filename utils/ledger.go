package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RunReport summarises one command run for the ingest ledger.
type RunReport struct {
	ID        string             `bson:"_id" json:"id"`
	Command   string             `bson:"command" json:"command"`
	ISO       string             `bson:"iso,omitempty" json:"iso,omitempty"`
	Input     string             `bson:"input" json:"input"`
	Output    string             `bson:"output,omitempty" json:"output,omitempty"`
	Features  int                `bson:"features" json:"features"`
	Gaps      int                `bson:"gaps" json:"gaps"`
	Overlaps  int                `bson:"overlaps" json:"overlaps"`
	Repaired  bool               `bson:"repaired" json:"repaired"`
	Stats     map[string]float64 `bson:"stats,omitempty" json:"stats,omitempty"`
	Warnings  []string           `bson:"warnings,omitempty" json:"warnings,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// NewRunReport creates a report with a fresh id and the current time.
func NewRunReport(command, input string) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		Command:   command,
		Input:     input,
		Timestamp: time.Now().UTC(),
	}
}

// Ledger records run reports.
type Ledger interface {
	Record(ctx context.Context, report *RunReport) error
	Close(ctx context.Context) error
}

// NopLedger discards reports.
type NopLedger struct{}

func (NopLedger) Record(context.Context, *RunReport) error { return nil }
func (NopLedger) Close(context.Context) error              { return nil }

// MongoLedger stores reports in a MongoDB collection.
type MongoLedger struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoLedger connects to uri and uses database.collection.
func NewMongoLedger(ctx context.Context, uri, database, collection string) (*MongoLedger, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, WrapError(ErrCodeInternal, err, "failed to connect to ledger")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, WrapError(ErrCodeInternal, err, "ledger not reachable")
	}
	return &MongoLedger{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (m *MongoLedger) Record(ctx context.Context, report *RunReport) error {
	if _, err := m.collection.InsertOne(ctx, report); err != nil {
		return WrapError(ErrCodeInternal, err, "failed to record run %s", report.ID)
	}
	return nil
}

func (m *MongoLedger) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
