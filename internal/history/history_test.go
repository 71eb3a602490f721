package history

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/config"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, ClampLimit(0))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxListLimit, ClampLimit(500))
}

func TestExportXLSX(t *testing.T) {
	entries := []models.HistoryEntry{
		{
			Query:     "what is crispr",
			Answer:    "## Summary\nGene editing [Source 1].",
			Sources:   []models.SourceRef{{Label: "Source 1", URLOrFilename: "https://example.org/crispr"}},
			CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{Query: "second", Answer: "answer", CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	}

	data, err := ExportXLSX(entries, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Query", rows[0][1])
	assert.Equal(t, "what is crispr", rows[1][1])
	assert.Equal(t, "[Source 1] https://example.org/crispr", rows[1][3])

	total, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}

// Requires a reachable MongoDB at MONGO_URI.
func TestStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	db := client.Database("researchmind_test_" + uuid.NewString()[:8])
	defer db.Drop(context.Background())
	require.NoError(t, config.EnsureIndexes(ctx, db))

	store := NewStore(db)
	require.NoError(t, store.SaveEntry(ctx, &models.HistoryEntry{UserID: "u1", Query: "q1", Answer: "a1"}))
	require.NoError(t, store.SaveEntry(ctx, &models.HistoryEntry{UserID: "u1", Query: "q2", Answer: "a2", CreatedAt: time.Now().Add(time.Minute)}))
	require.NoError(t, store.SaveEntry(ctx, &models.HistoryEntry{UserID: "u2", Query: "other", Answer: "x"}))

	entries, err := store.List(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q2", entries[0].Query)

	require.NoError(t, store.SaveDocument(ctx, &models.Document{UserID: "u1", Filename: "paper.pdf", ChunkCount: 3}))
	err = store.SaveDocument(ctx, &models.Document{UserID: "u1", Filename: "paper.pdf"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateFilename)

	assert.ErrorIs(t, store.DeleteDocument(ctx, "u1", "missing.pdf"), apperr.ErrNotFound)
	require.NoError(t, store.DeleteUser(ctx, "u1"))

	entries, err = store.List(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	docs, err := store.ListDocuments(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
