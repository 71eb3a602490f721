package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	HistoryCollection   = "research_history"
	DocumentsCollection = "documents"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if err := EnsureIndexes(ctx, client.Database(cfg.DBName)); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the history and document indexes. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	historyIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := db.Collection(HistoryCollection).Indexes().CreateMany(ctx, historyIndexes); err != nil {
		return fmt.Errorf("history indexes: %w", err)
	}

	documentIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
	}
	if _, err := db.Collection(DocumentsCollection).Indexes().CreateMany(ctx, documentIndexes); err != nil {
		return fmt.Errorf("document indexes: %w", err)
	}

	return nil
}
