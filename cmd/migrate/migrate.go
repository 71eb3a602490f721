package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/config"
	"github.com/baibhavbaidya/researchmind-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  ensure-indexes  - Create the history and document indexes")
		fmt.Println("  verify          - Report collection sizes and document records whose file is gone")
		fmt.Println("  prune-orphans   - Delete document records whose stored file is gone")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "ensure-indexes":
		if err := config.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes are in place")

	case "verify":
		if err := verify(ctx, db); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}

	case "prune-orphans":
		n, err := pruneOrphans(ctx, db)
		if err != nil {
			log.Fatalf("Prune failed: %v", err)
		}
		fmt.Printf("Removed %d orphaned document records\n", n)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func verify(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{config.HistoryCollection, config.DocumentsCollection} {
		count, err := db.Collection(name).CountDocuments(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", name, err)
		}
		fmt.Printf("  %s: %d documents\n", name, count)
	}

	orphans, err := findOrphans(ctx, db)
	if err != nil {
		return err
	}
	for _, doc := range orphans {
		fmt.Printf("  missing file for %s/%s (%s)\n", doc.UserID, doc.Filename, doc.FilePath)
	}
	fmt.Printf("%d orphaned document records\n", len(orphans))
	return nil
}

// findOrphans returns document records whose stored PDF no longer exists.
// Those documents cannot be re-indexed after a restart.
func findOrphans(ctx context.Context, db *mongo.Database) ([]models.Document, error) {
	cursor, err := db.Collection(config.DocumentsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orphans []models.Document
	for cursor.Next(ctx) {
		var doc models.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if _, err := os.Stat(doc.FilePath); errors.Is(err, os.ErrNotExist) {
			orphans = append(orphans, doc)
		}
	}
	return orphans, cursor.Err()
}

func pruneOrphans(ctx context.Context, db *mongo.Database) (int64, error) {
	orphans, err := findOrphans(ctx, db)
	if err != nil {
		return 0, err
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	ids := make([]any, 0, len(orphans))
	for _, doc := range orphans {
		ids = append(ids, doc.ID)
	}
	res, err := db.Collection(config.DocumentsCollection).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
