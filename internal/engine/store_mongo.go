package engine

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowcraft/enginecore/internal/model"
)

// MongoExecutionStore persists execution records as documents, one per
// execution id, in a single collection.
type MongoExecutionStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// MongoStoreConfig configures the connection MongoExecutionStore opens.
type MongoStoreConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// NewMongoExecutionStore connects to MongoDB and verifies reachability with
// a ping before returning.
func NewMongoExecutionStore(cfg MongoStoreConfig) (*MongoExecutionStore, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "executions"
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &MongoExecutionStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		timeout:    cfg.Timeout,
	}, nil
}

type mongoExecutionDoc struct {
	ID            string                 `bson:"_id"`
	WorkflowID    string                 `bson:"workflowId"`
	Status        model.Status           `bson:"status"`
	StartedAt     time.Time              `bson:"startedAt"`
	FinishedAt    *time.Time             `bson:"finishedAt,omitempty"`
	TriggerMode   string                 `bson:"triggerMode"`
	TriggerData   map[string]interface{} `bson:"triggerData"`
	Environment   model.Environment      `bson:"environment"`
	Path          []string               `bson:"path"`
	NodesExecuted int                    `bson:"nodesExecuted"`
	NodesFailed   int                    `bson:"nodesFailed"`
	NodesSkipped  int                    `bson:"nodesSkipped"`
	ErrorMessage  string                 `bson:"errorMessage"`
	DurationMs    int64                  `bson:"durationMs"`
	Version       int                    `bson:"version"`
}

func toDoc(row executionRow) mongoExecutionDoc {
	return mongoExecutionDoc{
		ID: row.ID, WorkflowID: row.WorkflowID, Status: row.Status,
		StartedAt: row.StartedAt, FinishedAt: row.FinishedAt,
		TriggerMode: row.TriggerMode, TriggerData: row.TriggerData,
		Environment: row.Environment, Path: row.Path,
		NodesExecuted: row.NodesExecuted, NodesFailed: row.NodesFailed,
		NodesSkipped: row.NodesSkipped, ErrorMessage: row.ErrorMessage,
		DurationMs: row.DurationMs, Version: row.Version,
	}
}

func fromDoc(doc mongoExecutionDoc) executionRow {
	return executionRow{
		ID: doc.ID, WorkflowID: doc.WorkflowID, Status: doc.Status,
		StartedAt: doc.StartedAt, FinishedAt: doc.FinishedAt,
		TriggerMode: doc.TriggerMode, TriggerData: doc.TriggerData,
		Environment: doc.Environment, Path: doc.Path,
		NodesExecuted: doc.NodesExecuted, NodesFailed: doc.NodesFailed,
		NodesSkipped: doc.NodesSkipped, ErrorMessage: doc.ErrorMessage,
		DurationMs: doc.DurationMs, Version: doc.Version,
	}
}

func (s *MongoExecutionStore) Save(ctx context.Context, record *model.ExecutionRecord) error {
	doc := toDoc(toRow(record))
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (s *MongoExecutionStore) FindByID(ctx context.Context, id string) (*model.ExecutionRecord, error) {
	var doc mongoExecutionDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return fromRow(fromDoc(doc)), nil
}

func (s *MongoExecutionStore) ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*model.ExecutionRecord, error) {
	opts := options.Find().SetSort(bson.M{"startedAt": -1}).SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.collection.Find(ctx, bson.M{"workflowId": workflowID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return s.decodeAll(ctx, cursor)
}

func (s *MongoExecutionStore) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.ExecutionRecord, error) {
	opts := options.Find().SetSort(bson.M{"startedAt": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return s.decodeAll(ctx, cursor)
}

func (s *MongoExecutionStore) CountByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{"workflowId": workflowID})
}

func (s *MongoExecutionStore) decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]*model.ExecutionRecord, error) {
	var docs []mongoExecutionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]*model.ExecutionRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromRow(fromDoc(doc)))
	}
	return records, nil
}
