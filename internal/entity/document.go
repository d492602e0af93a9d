package entity

import (
	"time"

	"github.com/joseph-ayodele/homework-solver/constants"
)

// Document represents one PDF tracked by the pipeline for data transfer between layers.
type Document struct {
	ID            string                   `json:"id"`
	SourcePath    string                   `json:"source_path"`
	ContentHash   string                   `json:"content_hash"`
	Status        constants.DocumentStatus `json:"status"`
	Attempts      int                      `json:"attempts"`
	FirstSeenAt   time.Time                `json:"first_seen_at"`
	LastAttemptAt *time.Time               `json:"last_attempt_at,omitempty"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
	ErrorDetails  string                   `json:"error_details,omitempty"`
	ResultPath    string                   `json:"result_path,omitempty"`
}
