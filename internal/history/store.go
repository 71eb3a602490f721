package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/config"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MaxListLimit = 50

// Store persists research history and uploaded document metadata in MongoDB.
type Store struct {
	history   *mongo.Collection
	documents *mongo.Collection
	now       func() time.Time
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		history:   db.Collection(config.HistoryCollection),
		documents: db.Collection(config.DocumentsCollection),
		now:       time.Now,
	}
}

func (s *Store) SaveEntry(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	res, err := s.history.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return nil
}

// List returns the newest entries first. limit is clamped to [1, MaxListLimit].
func (s *Store) List(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	limit = ClampLimit(limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.history.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.HistoryEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return entries, nil
}

func (s *Store) ClearHistory(ctx context.Context, userID string) (int64, error) {
	res, err := s.history.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = s.now().UTC()
	}
	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateFilename, doc.Filename)
		}
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, userID, filename string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"user_id": userID, "filename": filename}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: document %s", apperr.ErrNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}})
	cursor, err := s.documents.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

func (s *Store) DeleteDocument(ctx context.Context, userID, filename string) error {
	res, err := s.documents.DeleteOne(ctx, bson.M{"user_id": userID, "filename": filename})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: document %s", apperr.ErrNotFound, filename)
	}
	return nil
}

func (s *Store) ClearDocuments(ctx context.Context, userID string) (int64, error) {
	res, err := s.documents.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to clear documents: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteUser removes every history entry and document record of userID.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.ClearHistory(ctx, userID); err != nil {
		return err
	}
	_, err := s.ClearDocuments(ctx, userID)
	return err
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, MaxListLimit)
}
