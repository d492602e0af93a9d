package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
	"github.com/joseph-ayodele/homework-solver/internal/repository"
)

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	docs := repository.NewMemoryDocumentRepository()
	store, err := repository.NewFileResultStore(filepath.Join(t.TempDir(), "out"), nil)
	require.NoError(t, err)

	gen := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = docs.Register(ctx, entity.Document{ID: "hw-1", SourcePath: "/w/hw.pdf", ContentHash: "h"})
	require.NoError(t, err)
	_, _, err = store.Write(entity.DocumentResult{
		DocumentID:  "hw-1",
		SourcePath:  "/w/hw.pdf",
		Status:      constants.ResultPartial,
		GeneratedAt: gen,
		MajorQuestions: []entity.MajorQuestionResult{
			{Sequence: 1, Label: "1", Status: string(constants.DispatchAnswered), Subquestions: []entity.SubquestionResult{
				{Label: "a", Text: "2+2", Answer: "4"},
				{Label: "b", Text: "3*3", Answer: "9", Explanation: "multiply"},
			}},
			{Sequence: 2, Label: "2", Status: string(constants.DispatchFailed),
				Failure:      &entity.Failure{Kind: "TRANSIENT_DISPATCH", Message: "timeout", Attempts: 3},
				Subquestions: []entity.SubquestionResult{{Label: "2", Text: "Explain"}}},
		},
	})
	require.NoError(t, err)

	data, err := NewService(docs, store, nil).ExportXLSX(ctx, nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(answersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Document", rows[0][0])
	assert.Equal(t, []string{"hw-1", "/w/hw.pdf", "1", "b", "3*3", "9", "multiply", "answered"}, rows[2][:8])
	assert.Equal(t, "TRANSIENT_DISPATCH: timeout", rows[3][8])

	docRows, err := f.GetRows(documentsSheet)
	require.NoError(t, err)
	require.Len(t, docRows, 2)
	assert.Equal(t, "pending", docRows[1][2])

	later := gen.Add(time.Hour)
	data, err = NewService(docs, store, nil).ExportXLSX(ctx, &later, nil)
	require.NoError(t, err)
	f2, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f2.Close() }()
	rows, err = f2.GetRows(answersSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "only the header when every result is out of range")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "第一…", truncate("第一二三", 3))
}
