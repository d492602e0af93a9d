package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/homework-solver/internal/entity"
	"github.com/joseph-ayodele/homework-solver/internal/repository"
)

const (
	answersSheet   = "Answers"
	documentsSheet = "Documents"
)

// Service produces XLSX workbooks from persisted results and the status table.
type Service struct {
	docs    repository.DocumentRepository
	results repository.ResultStore
	logger  *slog.Logger
}

func NewService(docs repository.DocumentRepository, results repository.ResultStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, results: results, logger: logger}
}

// ExportXLSX returns a workbook with one Answers row per subquestion and one
// Documents row per known document. from/to bound the result generation time
// (inclusive, either may be nil).
func (s *Service) ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	ids, err := s.results.List()
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	var results []*entity.DocumentResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.results.Load(id)
		if err != nil {
			s.logger.Warn("export.result.unreadable", "document_id", id, "err", err)
			continue
		}
		if from != nil && r.GeneratedAt.Before(*from) {
			continue
		}
		if to != nil && r.GeneratedAt.After(*to) {
			continue
		}
		results = append(results, r)
	}

	docs, err := s.docs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default sheet becomes Answers
	if err := f.SetSheetName(f.GetSheetName(0), answersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(documentsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(answersSheet)
	f.SetActiveSheet(activeIndex)

	rows := 0
	if rows, err = writeAnswers(f, results); err != nil {
		return nil, err
	}
	if err := writeDocuments(f, docs); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"results", len(results),
		"rows", rows,
		"documents", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeAnswers(f *excelize.File, results []*entity.DocumentResult) (int, error) {
	headers := []any{
		"Document",
		"Source File",
		"Question",
		"Part",
		"Question Text",
		"Answer",
		"Explanation",
		"Status",
		"Failure",
		"Generated At",
	}
	if err := writeRow(f, answersSheet, 1, headers...); err != nil {
		return 0, err
	}

	row := 2
	for _, r := range results {
		for _, mq := range r.MajorQuestions {
			failure := ""
			if mq.Failure != nil {
				failure = mq.Failure.Kind
				if mq.Failure.Message != "" {
					failure += ": " + truncate(mq.Failure.Message, 140)
				}
			}
			for _, sq := range mq.Subquestions {
				if err := writeRow(f, answersSheet, row,
					r.DocumentID,
					r.SourcePath,
					mq.Label,
					sq.Label,
					truncate(sq.Text, 500),
					sq.Answer,
					sq.Explanation,
					mq.Status,
					failure,
					r.GeneratedAt.Format(time.RFC3339),
				); err != nil {
					return 0, err
				}
				row++
			}
		}
	}

	_ = f.SetColWidth(answersSheet, "A", "A", 30) // document
	_ = f.SetColWidth(answersSheet, "B", "B", 40) // source
	_ = f.SetColWidth(answersSheet, "C", "D", 10) // labels
	_ = f.SetColWidth(answersSheet, "E", "G", 60) // text
	_ = f.SetColWidth(answersSheet, "H", "H", 12)
	_ = f.SetColWidth(answersSheet, "I", "I", 40)
	_ = f.SetColWidth(answersSheet, "J", "J", 22)
	return row - 2, nil
}

func writeDocuments(f *excelize.File, docs []entity.Document) error {
	if err := writeRow(f, documentsSheet, 1,
		"Document", "Source File", "Status", "Attempts", "First Seen", "Completed", "Result File", "Error"); err != nil {
		return err
	}
	for i, d := range docs {
		completed := ""
		if d.CompletedAt != nil {
			completed = d.CompletedAt.Format(time.RFC3339)
		}
		if err := writeRow(f, documentsSheet, i+2,
			d.ID,
			d.SourcePath,
			string(d.Status),
			d.Attempts,
			d.FirstSeenAt.Format(time.RFC3339),
			completed,
			d.ResultPath,
			truncate(d.ErrorDetails, 200),
		); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(documentsSheet, "A", "B", 40)
	_ = f.SetColWidth(documentsSheet, "E", "F", 22)
	_ = f.SetColWidth(documentsSheet, "G", "H", 50)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	var errs []error
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
