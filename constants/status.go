package constants

import "fmt"

// DocumentStatus is the canonical status for rows in the documents table.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentPending    DocumentStatus = "pending"     // seen, not claimed yet
	DocumentInProgress DocumentStatus = "in_progress" // claimed by a worker
	DocumentCompleted  DocumentStatus = "completed"   // result persisted
	DocumentFailed     DocumentStatus = "failed"      // extraction or segmentation failed
)

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentPending:    {DocumentInProgress},
	DocumentInProgress: {DocumentCompleted, DocumentFailed},
	DocumentFailed:     {DocumentPending},
}

// CanTransition reports whether a document may move from one status to another.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	for _, next := range documentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known document statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentPending, DocumentInProgress, DocumentCompleted, DocumentFailed:
		return true
	}
	return false
}

// ParseDocumentStatus maps a stored string back to a DocumentStatus.
func ParseDocumentStatus(v string) (DocumentStatus, error) {
	s := DocumentStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown document status %q", v)
	}
	return s, nil
}

// DispatchStatus tracks a single major question through the AI dispatcher.
type DispatchStatus string

const (
	DispatchNotSent  DispatchStatus = "not_sent"
	DispatchSent     DispatchStatus = "sent"
	DispatchAnswered DispatchStatus = "answered"
	DispatchFailed   DispatchStatus = "failed"
)

// rank orders dispatch statuses; answered and failed are both terminal.
func (s DispatchStatus) rank() int {
	switch s {
	case DispatchNotSent:
		return 0
	case DispatchSent:
		return 1
	case DispatchAnswered, DispatchFailed:
		return 2
	}
	return -1
}

// Terminal reports whether no further dispatch transition is possible.
func (s DispatchStatus) Terminal() bool {
	return s == DispatchAnswered || s == DispatchFailed
}

// CanAdvance reports whether s may move forward to next. Status never regresses.
func (s DispatchStatus) CanAdvance(next DispatchStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to == from+1
}

// ResultStatus summarises a persisted DocumentResult.
type ResultStatus string

const (
	ResultAnswered   ResultStatus = "answered"   // every major question answered
	ResultPartial    ResultStatus = "partial"    // at least one answered, at least one failed
	ResultUnanswered ResultStatus = "unanswered" // no major question answered
)
