package repository

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

var (
	// ErrNotFound is returned when no document has the given ID.
	ErrNotFound = errors.New("document not found")
	// ErrClaimLost is returned when a status transition is attempted by a worker
	// that does not (or no longer) hold the document.
	ErrClaimLost = errors.New("document not claimable")
)

// DocumentRepository is the status table of the pipeline. Every transition is a
// single atomic read-modify-write; claim tokens make sure only one worker moves a document.
type DocumentRepository interface {
	// Register inserts doc as pending unless its ID is already known.
	// It returns the stored row and whether it was created.
	Register(ctx context.Context, doc entity.Document) (*entity.Document, bool, error)
	Get(ctx context.Context, id string) (*entity.Document, error)
	// Claim moves a pending document, or an unclaimed in_progress one, to in_progress under token.
	Claim(ctx context.Context, id, token string, at time.Time) (*entity.Document, error)
	// Complete marks a claimed document completed. Call only after its result is persisted.
	Complete(ctx context.Context, id, token, resultPath string, at time.Time) error
	// Fail marks a claimed document failed.
	Fail(ctx context.Context, id, token, details string, at time.Time) error
	// Release drops the claim but leaves the document in_progress, eligible for another attempt.
	Release(ctx context.Context, id, token, details string) error
	// Requeue is the explicit failed -> pending re-trigger.
	Requeue(ctx context.Context, id string) (*entity.Document, error)
	// RecoverStale releases every claim; used at startup after an unclean stop.
	RecoverStale(ctx context.Context) (int, error)
	// List returns documents ordered by first sighting, optionally filtered by status.
	List(ctx context.Context, status constants.DocumentStatus) ([]entity.Document, error)
	// FindByPath returns every document ever seen at path, newest first.
	FindByPath(ctx context.Context, path string) ([]entity.Document, error)
	Close() error
}
