package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryEntry is one completed research run as stored for the user.
type HistoryEntry struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"-"`
	RunID        string             `bson:"run_id" json:"run_id"`
	Query        string             `bson:"query" json:"query"`
	Answer       string             `bson:"answer" json:"answer"`
	Sources      []SourceRef        `bson:"sources" json:"sources"`
	AgentLogs    []AgentLog         `bson:"agent_logs,omitempty" json:"agent_logs,omitempty"`
	Notes        []string           `bson:"notes,omitempty" json:"notes,omitempty"`
	UsedDocument bool               `bson:"used_documents" json:"used_documents"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// SourceRef is a cited source of an answer.
type SourceRef struct {
	Label         string `bson:"label" json:"source_label"`
	URLOrFilename string `bson:"url_or_filename" json:"url_or_filename"`
	Title         string `bson:"title" json:"title"`
	Origin        string `bson:"origin" json:"origin"`
	Confidence    string `bson:"confidence,omitempty" json:"confidence,omitempty"`
}

// AgentLog is a progress line kept with the history entry.
type AgentLog struct {
	Stage   string `bson:"stage" json:"agent"`
	Status  string `bson:"status" json:"status"`
	Message string `bson:"message" json:"message"`
}

type QueryRequest struct {
	Query        string `json:"query" binding:"required"`
	UseDocuments bool   `json:"use_documents"`
}

type FollowupRequest struct {
	OriginalQuery    string `json:"original_query" binding:"required,max=2000"`
	OriginalAnswer   string `json:"original_answer" binding:"required,max=20000"`
	FollowupQuestion string `json:"followup_question" binding:"required"`
}

type FollowupResponse struct {
	Answer string `json:"answer"`
}
