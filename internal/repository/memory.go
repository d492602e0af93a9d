package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

type memRow struct {
	doc   entity.Document
	token string
	seq   int
}

// MemoryDocumentRepository keeps the status table in memory. It backs tests
// and one-shot runs that need no history.
type MemoryDocumentRepository struct {
	mu   sync.Mutex
	rows map[string]*memRow
	seq  int
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{rows: map[string]*memRow{}}
}

func (r *MemoryDocumentRepository) Register(_ context.Context, doc entity.Document) (*entity.Document, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[doc.ID]; ok {
		d := row.doc
		return &d, false, nil
	}
	doc.Status = constants.DocumentPending
	if doc.FirstSeenAt.IsZero() {
		doc.FirstSeenAt = time.Now().UTC()
	}
	r.seq++
	r.rows[doc.ID] = &memRow{doc: doc, seq: r.seq}
	d := doc
	return &d, true, nil
}

func (r *MemoryDocumentRepository) Get(_ context.Context, id string) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := row.doc
	return &d, nil
}

func (r *MemoryDocumentRepository) Claim(_ context.Context, id, token string, at time.Time) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	claimable := row.doc.Status == constants.DocumentPending ||
		(row.doc.Status == constants.DocumentInProgress && row.token == "")
	if !claimable {
		return nil, ErrClaimLost
	}
	at = at.UTC()
	row.doc.Status = constants.DocumentInProgress
	row.doc.Attempts++
	row.doc.LastAttemptAt = &at
	row.doc.ErrorDetails = ""
	row.token = token
	d := row.doc
	return &d, nil
}

func (r *MemoryDocumentRepository) owned(id, token string) (*memRow, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if row.doc.Status != constants.DocumentInProgress || row.token == "" || row.token != token {
		return nil, ErrClaimLost
	}
	return row, nil
}

func (r *MemoryDocumentRepository) Complete(_ context.Context, id, token, resultPath string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, err := r.owned(id, token)
	if err != nil {
		return err
	}
	at = at.UTC()
	row.doc.Status = constants.DocumentCompleted
	row.doc.CompletedAt = &at
	row.doc.ResultPath = resultPath
	row.doc.ErrorDetails = ""
	row.token = ""
	return nil
}

func (r *MemoryDocumentRepository) Fail(_ context.Context, id, token, details string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, err := r.owned(id, token)
	if err != nil {
		return err
	}
	row.doc.Status = constants.DocumentFailed
	row.doc.ErrorDetails = details
	row.token = ""
	return nil
}

func (r *MemoryDocumentRepository) Release(_ context.Context, id, token, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, err := r.owned(id, token)
	if err != nil {
		return err
	}
	row.doc.ErrorDetails = details
	row.token = ""
	return nil
}

func (r *MemoryDocumentRepository) Requeue(_ context.Context, id string) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if row.doc.Status != constants.DocumentFailed {
		return nil, ErrClaimLost
	}
	row.doc.Status = constants.DocumentPending
	row.doc.ErrorDetails = ""
	d := row.doc
	return &d, nil
}

func (r *MemoryDocumentRepository) RecoverStale(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.doc.Status == constants.DocumentInProgress && row.token != "" {
			row.token = ""
			n++
		}
	}
	return n, nil
}

func (r *MemoryDocumentRepository) List(_ context.Context, status constants.DocumentStatus) ([]entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]*memRow, 0, len(r.rows))
	for _, row := range r.rows {
		if status == "" || row.doc.Status == status {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]entity.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.doc)
	}
	return out, nil
}

func (r *MemoryDocumentRepository) FindByPath(_ context.Context, path string) ([]entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []*memRow
	for _, row := range r.rows {
		if row.doc.SourcePath == path {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]entity.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.doc)
	}
	return out, nil
}

func (r *MemoryDocumentRepository) Close() error { return nil }
