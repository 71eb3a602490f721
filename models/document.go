package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is the stored metadata of an uploaded file. The chunks themselves
// live only in the in-memory index.
type Document struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"-"`
	Filename   string             `bson:"filename" json:"filename"`
	FilePath   string             `bson:"file_path" json:"-"`
	FileHash   string             `bson:"file_hash" json:"file_hash"`
	Size       int64              `bson:"size" json:"size"`
	ChunkCount int                `bson:"chunk_count" json:"chunks"`
	PageCount  int                `bson:"page_count" json:"pages"`
	UploadedAt time.Time          `bson:"uploaded_at" json:"uploaded_at"`
}

type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Pages    int    `json:"pages"`
}

// UploadJob is the status of an asynchronous upload.
type UploadJob struct {
	ID        string    `json:"job_id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"` // pending, processing, completed, failed
	Chunks    int       `json:"chunks,omitempty"`
	Pages     int       `json:"pages,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)
