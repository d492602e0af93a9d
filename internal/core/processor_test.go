package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/dispatch"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
	"github.com/joseph-ayodele/homework-solver/internal/llm"
	"github.com/joseph-ayodele/homework-solver/internal/repository"
)

type fakeExtractor struct {
	mu    sync.Mutex
	pages []entity.PageRecord
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, _ string) ([]entity.PageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, ctx.Err()
}

// labelSolver answers every subquestion it is asked about unless the problem label is in fail.
type labelSolver struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	hook  func()
}

func newLabelSolver() *labelSolver {
	return &labelSolver{calls: map[string]int{}, fail: map[string]error{}}
}

func (s *labelSolver) Complete(_ context.Context, p llm.Prompt) (llm.Completion, error) {
	lines := strings.Split(p.User, "\n")
	label := strings.TrimPrefix(lines[0], "Problem ")
	s.mu.Lock()
	s.calls[label]++
	err := s.fail[label]
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return llm.Completion{}, err
	}

	var items []string
	for _, l := range lines {
		if strings.HasPrefix(l, "- [") {
			sub := l[3:strings.Index(l, "]")]
			items = append(items, fmt.Sprintf(`{"sub_id":%q,"answer":"ans-%s","explanation":"why"}`, sub, sub))
		}
	}
	return llm.Completion{Content: fmt.Sprintf(`{"problem_id":%q,"answers":[%s]}`, label, strings.Join(items, ","))}, nil
}

func (s *labelSolver) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func lines(idx int, text ...string) entity.PageRecord {
	p := entity.PageRecord{Index: idx}
	for i, l := range text {
		p.Blocks = append(p.Blocks, entity.TextBlock{Text: l, X: 72, Y: float64(10 * (i + 1))})
	}
	return p
}

func homeworkPages() []entity.PageRecord {
	return []entity.PageRecord{
		lines(1, "Physics Homework 3", "1. Compute the following.", "(a) 2 + 2", "(b) 3 * 3"),
		lines(2, "2. Explain why the sky is blue."),
	}
}

type failingStore struct {
	repository.ResultStore
	failures int
}

func (s *failingStore) Write(r entity.DocumentResult) (string, bool, error) {
	if s.failures > 0 {
		s.failures--
		return "", false, common.PersistenceError("disk full", nil)
	}
	return s.ResultStore.Write(r)
}

// completeFailsOnce loses the first Complete, as a state DB that goes away after the result is written.
type completeFailsOnce struct {
	repository.DocumentRepository
	failed bool
}

func (r *completeFailsOnce) Complete(ctx context.Context, id, token, resultPath string, at time.Time) error {
	if !r.failed {
		r.failed = true
		return fmt.Errorf("database is locked")
	}
	return r.DocumentRepository.Complete(ctx, id, token, resultPath, at)
}

type harness struct {
	dir       string
	out       string
	extractor *fakeExtractor
	solver    *labelSolver
	docs      *repository.MemoryDocumentRepository
	repo      repository.DocumentRepository // what the processor sees; defaults to docs
	results   repository.ResultStore
	opts      []Option
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "results")
	store, err := repository.NewFileResultStore(out, nil)
	require.NoError(t, err)
	docs := repository.NewMemoryDocumentRepository()
	return &harness{
		dir:       dir,
		out:       out,
		extractor: &fakeExtractor{pages: homeworkPages()},
		solver:    newLabelSolver(),
		docs:      docs,
		repo:      docs,
		results:   store,
	}
}

func (h *harness) processor() *Processor {
	policy := dispatch.DefaultRetryPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	d := dispatch.NewDispatcher(h.solver, nil, dispatch.WithRetryPolicy(policy))
	opts := append([]Option{WithModel("test-model")}, h.opts...)
	return NewProcessor(nil, h.extractor, d, h.repo, h.results, opts...)
}

func (h *harness) pdf(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (h *harness) resultFiles(t *testing.T) []string {
	t.Helper()
	ids, err := h.results.List()
	require.NoError(t, err)
	return ids
}

func TestProcessTimedOutQuestionStillCompletesDocument(t *testing.T) {
	h := newHarness(t)
	h.solver.fail["2"] = common.TransientDispatchError("request timed out", context.DeadlineExceeded)
	path := h.pdf(t, "hw3.pdf", "%PDF homework 3")

	res, err := h.processor().Process(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, constants.DocumentCompleted, res.Status)
	assert.Equal(t, 1, h.solver.calls["1"])
	assert.Equal(t, dispatch.DefaultMaxAttempts, h.solver.calls["2"])

	doc, err := h.docs.Get(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentCompleted, doc.Status)
	assert.Equal(t, res.ResultPath, doc.ResultPath)

	stored, err := h.results.Load(res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultPartial, stored.Status)
	assert.Equal(t, "Physics Homework 3", stored.Preamble)
	assert.Equal(t, "test-model", stored.Model)
	assert.Equal(t, llm.PromptVersion, stored.PromptVersion)
	require.Len(t, stored.MajorQuestions, 2)

	q1, q2 := stored.MajorQuestions[0], stored.MajorQuestions[1]
	assert.Equal(t, "1", q1.Label)
	assert.Equal(t, string(constants.DispatchAnswered), q1.Status)
	assert.Equal(t, "ans-a", q1.Subquestions[0].Answer)
	assert.Equal(t, "ans-b", q1.Subquestions[1].Answer)
	assert.Nil(t, q1.Failure)

	assert.Equal(t, "2", q2.Label)
	assert.Equal(t, string(constants.DispatchFailed), q2.Status)
	require.NotNil(t, q2.Failure)
	assert.Equal(t, common.CodeTransientDispatch, q2.Failure.Kind)
	assert.Equal(t, dispatch.DefaultMaxAttempts, q2.Failure.Attempts)
}

func TestProcessRedeliveryIsNoop(t *testing.T) {
	h := newHarness(t)
	p := h.processor()
	path := h.pdf(t, "hw.pdf", "%PDF v1")

	first, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	calls := h.solver.total()
	before, err := os.Stat(first.ResultPath)
	require.NoError(t, err)

	second, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, calls, h.solver.total(), "no dispatch on redelivery")
	assert.Equal(t, 1, h.extractor.calls)

	after, err := os.Stat(first.ResultPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "no write on redelivery")
}

func TestProcessModifiedFileIsNewDocument(t *testing.T) {
	h := newHarness(t)
	p := h.processor()
	path := h.pdf(t, "hw.pdf", "%PDF v1")

	first, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	original, err := os.ReadFile(first.ResultPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("%PDF v2"), 0o644))
	second, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.NotEqual(t, first.DocumentID, second.DocumentID)
	assert.NotEqual(t, first.ResultPath, second.ResultPath)
	assert.Len(t, h.resultFiles(t), 2)

	unchanged, err := os.ReadFile(first.ResultPath)
	require.NoError(t, err)
	assert.Equal(t, original, unchanged)
}

func TestProcessExtractionFailureThenRetrigger(t *testing.T) {
	h := newHarness(t)
	h.extractor.err = common.ExtractionError("corrupted pdf", nil)
	p := h.processor()
	path := h.pdf(t, "broken.pdf", "not a pdf")

	res, err := p.Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodeExtraction))
	assert.Equal(t, constants.DocumentFailed, res.Status)
	assert.Empty(t, h.resultFiles(t))
	assert.Zero(t, h.solver.total())

	doc, err := h.docs.Get(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentFailed, doc.Status)
	assert.Contains(t, doc.ErrorDetails, common.CodeExtraction)

	again, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, again.Skipped, "failed documents wait for an explicit retry")

	h.extractor.err = nil
	requeued, err := p.Retrigger(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, res.DocumentID, requeued.ID)
	assert.Equal(t, constants.DocumentPending, requeued.Status)

	final, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentCompleted, final.Status)

	doc, err = h.docs.Get(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Attempts)
}

func TestProcessSegmentationFailure(t *testing.T) {
	h := newHarness(t)
	h.extractor.pages = []entity.PageRecord{lines(1, "Reading notes", "no numbered questions here")}
	path := h.pdf(t, "notes.pdf", "%PDF notes")

	res, err := h.processor().Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodeSegmentation))
	assert.Equal(t, constants.DocumentFailed, res.Status)
	assert.Empty(t, h.resultFiles(t))
}

func TestProcessPersistenceFailureKeepsDocumentInProgress(t *testing.T) {
	h := newHarness(t)
	h.results = &failingStore{ResultStore: h.results, failures: 1}
	p := h.processor()
	path := h.pdf(t, "hw.pdf", "%PDF v1")

	res, err := p.Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodePersistence))
	assert.Equal(t, constants.DocumentInProgress, res.Status)

	doc, err := h.docs.Get(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentInProgress, doc.Status)
	assert.Contains(t, doc.ErrorDetails, "disk full")
	assert.Empty(t, h.resultFiles(t))

	res, err = p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentCompleted, res.Status)
	assert.Len(t, h.resultFiles(t), 1)
}

func TestProcessCompleteFailureLeavesDocumentRetryable(t *testing.T) {
	h := newHarness(t)
	h.repo = &completeFailsOnce{DocumentRepository: h.docs}
	p := h.processor()
	path := h.pdf(t, "hw.pdf", "%PDF v1")

	res, err := p.Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodeState))
	assert.Equal(t, constants.DocumentInProgress, res.Status)
	require.Len(t, h.resultFiles(t), 1, "the result was persisted before the status write failed")
	calls := h.solver.total()

	doc, err := h.docs.Get(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentInProgress, doc.Status)
	assert.Contains(t, doc.ErrorDetails, "database is locked")

	again, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, again.Skipped, "claim was released")
	assert.Equal(t, constants.DocumentCompleted, again.Status)
	assert.Len(t, h.resultFiles(t), 1, "existing result is reused")
	assert.Equal(t, 2*calls, h.solver.total())

	doc, err = h.docs.Get(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentCompleted, doc.Status)
	assert.Equal(t, again.ResultPath, doc.ResultPath)
}

func TestProcessCancelledDuringDispatchReleasesClaim(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.solver.hook = cancel
	path := h.pdf(t, "hw.pdf", "%PDF v1")

	res, err := h.processor().Process(ctx, path)
	require.Error(t, err)
	assert.Equal(t, constants.DocumentInProgress, res.Status)
	assert.Empty(t, h.resultFiles(t))

	n, err := h.docs.RecoverStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "claim was already released")
}

func TestRecoverResumesInterruptedDocuments(t *testing.T) {
	h := newHarness(t)
	p := h.processor()
	path := h.pdf(t, "hw.pdf", "%PDF v1")
	abs, err := filepath.Abs(path)
	require.NoError(t, err)

	// simulate a crash: claimed, never finished
	id := "hw-crashed"
	_, _, err = h.docs.Register(context.Background(), entity.Document{ID: id, SourcePath: abs, ContentHash: "x"})
	require.NoError(t, err)
	_, err = h.docs.Claim(context.Background(), id, "dead-worker", time.Now())
	require.NoError(t, err)

	paths, err := p.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, paths)

	_, err = h.docs.Claim(context.Background(), id, "new-worker", time.Now())
	assert.NoError(t, err)
}

func TestProcessArchivesCompletedSource(t *testing.T) {
	h := newHarness(t)
	archiveDir := filepath.Join(h.dir, "done")
	h.opts = []Option{
		WithArchiveDir(archiveDir),
		WithClock(func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }),
	}
	p := h.processor()

	require.NoError(t, os.MkdirAll(archiveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(archiveDir, "hw.pdf"), []byte("older"), 0o644))
	path := h.pdf(t, "hw.pdf", "%PDF v1")

	_, err := p.Process(context.Background(), path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	moved, err := os.ReadFile(filepath.Join(archiveDir, "hw-20260506T070809.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF v1", string(moved))
}

func TestRetriggerRejectsUnknownAndNonFailed(t *testing.T) {
	h := newHarness(t)
	p := h.processor()

	_, err := p.Retrigger(context.Background(), "no-such-doc")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	res, err := p.Process(context.Background(), h.pdf(t, "hw.pdf", "%PDF v1"))
	require.NoError(t, err)
	_, err = p.Retrigger(context.Background(), res.DocumentID)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodeState))
}
