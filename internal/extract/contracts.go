package extract

import (
	"context"

	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// Extractor turns a PDF on disk into ordered page records.
// Failures are reported as EXTRACTION AppErrors; there is no internal retry.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]entity.PageRecord, error)
}
