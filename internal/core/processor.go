package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/aggregate"
	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/dispatch"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
	"github.com/joseph-ayodele/homework-solver/internal/extract"
	"github.com/joseph-ayodele/homework-solver/internal/ingest"
	"github.com/joseph-ayodele/homework-solver/internal/llm"
	"github.com/joseph-ayodele/homework-solver/internal/repository"
	"github.com/joseph-ayodele/homework-solver/internal/segment"
)

// Processor moves one PDF through extract -> segment -> dispatch -> aggregate -> persist,
// driving the document state machine in the repository.
type Processor struct {
	logger     *slog.Logger
	extractor  extract.Extractor
	segmenter  *segment.Segmenter
	dispatcher *dispatch.Dispatcher
	executor   dispatch.Executor
	docs       repository.DocumentRepository
	results    repository.ResultStore
	model      string
	archiveDir string
	now        func() time.Time
}

type Option func(*Processor)

func WithExecutor(e dispatch.Executor) Option {
	return func(p *Processor) {
		if e != nil {
			p.executor = e
		}
	}
}

func WithSegmenter(s *segment.Segmenter) Option {
	return func(p *Processor) {
		if s != nil {
			p.segmenter = s
		}
	}
}

// WithModel records the model name in every result.
func WithModel(model string) Option {
	return func(p *Processor) { p.model = model }
}

// WithArchiveDir moves each completed source PDF into dir.
func WithArchiveDir(dir string) Option {
	return func(p *Processor) { p.archiveDir = dir }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(
	logger *slog.Logger,
	extractor extract.Extractor,
	dispatcher *dispatch.Dispatcher,
	docs repository.DocumentRepository,
	results repository.ResultStore,
	opts ...Option,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:     logger,
		extractor:  extractor,
		segmenter:  segment.NewSegmenter(segment.DefaultRules()),
		dispatcher: dispatcher,
		executor:   dispatch.Sequential{},
		docs:       docs,
		results:    results,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessResult describes what Process did with a path.
type ProcessResult struct {
	DocumentID string
	Status     constants.DocumentStatus
	ResultPath string
	Skipped    bool
	Reason     string
}

// Process handles one (debounced) event for path. Re-delivery for a document that
// is completed, failed or claimed by another worker is a no-op.
// A non-nil error means the document was not completed on this call.
func (p *Processor) Process(ctx context.Context, path string) (ProcessResult, error) {
	var out ProcessResult

	id, err := ingest.Identify(path)
	if err != nil {
		p.logger.Warn("processor.identify.failed", "path", path, "err", err)
		return out, fmt.Errorf("identify %s: %w", path, err)
	}
	out.DocumentID = id.DocumentID
	log := p.logger.With("document_id", id.DocumentID, "path", id.Path)

	doc, created, err := p.docs.Register(ctx, entity.Document{
		ID:          id.DocumentID,
		SourcePath:  id.Path,
		ContentHash: id.ContentHash,
		FirstSeenAt: p.now().UTC(),
	})
	if err != nil {
		log.Error("processor.register.failed", "err", err)
		return out, common.NewAppError(common.CodeState, "register document", err)
	}
	out.Status = doc.Status
	if !created {
		log.Debug("processor.document.known", "status", doc.Status, "attempts", doc.Attempts)
	}
	if doc.Status == constants.DocumentCompleted || doc.Status == constants.DocumentFailed {
		out.Skipped, out.ResultPath = true, doc.ResultPath
		out.Reason = "document already " + string(doc.Status)
		log.Info("processor.skip", "reason", out.Reason)
		return out, nil
	}

	token := uuid.New().String()
	doc, err = p.docs.Claim(ctx, doc.ID, token, p.now().UTC())
	if errors.Is(err, repository.ErrClaimLost) {
		out.Skipped, out.Reason = true, "document claimed by another worker"
		log.Info("processor.skip", "reason", out.Reason)
		return out, nil
	}
	if err != nil {
		log.Error("processor.claim.failed", "err", err)
		return out, common.NewAppError(common.CodeState, "claim document", err)
	}
	out.Status = doc.Status
	ctx = common.WithDocumentID(ctx, doc.ID)
	log.Info("processor.start", "attempt", doc.Attempts)
	start := p.now()

	pages, err := p.extractor.Extract(ctx, doc.SourcePath)
	if err != nil {
		return p.fail(ctx, log, out, doc.ID, token, err)
	}
	log.Debug("processor.extract.ok", "pages", len(pages))

	questions, err := p.segmenter.Segment(pages)
	if err != nil {
		return p.fail(ctx, log, out, doc.ID, token, err)
	}
	log.Debug("processor.segment.ok", "units", len(questions))

	outcomes := p.dispatcher.DispatchAll(ctx, p.executor, pages, questions)
	if ctx.Err() != nil {
		return p.release(ctx, log, out, doc.ID, token, ctx.Err())
	}

	result, err := aggregate.Aggregate(*doc, questions, outcomes, aggregate.Meta{
		PromptVersion: llm.PromptVersion,
		Model:         p.model,
		GeneratedAt:   p.now().UTC(),
	})
	if err != nil {
		return p.fail(ctx, log, out, doc.ID, token, common.NewAppError(common.CodeState, "aggregate", err))
	}

	resultPath, createdFile, err := p.results.Write(result)
	if err != nil {
		log.Error("processor.persist.failed", "err", err)
		return p.release(ctx, log, out, doc.ID, token, err)
	}
	if !createdFile {
		log.Info("processor.persist.exists", "result_path", resultPath)
	}

	if err := p.docs.Complete(context.WithoutCancel(ctx), doc.ID, token, resultPath, p.now().UTC()); err != nil {
		// The result file stays; a later attempt reuses it instead of writing again.
		log.Error("processor.complete.failed", "result_path", resultPath, "err", err)
		return p.release(ctx, log, out, doc.ID, token, common.NewAppError(common.CodeState, "complete document", err))
	}
	out.Status = constants.DocumentCompleted
	out.ResultPath = resultPath
	log.Info("processor.completed",
		"result", result.Status,
		"questions", len(result.MajorQuestions),
		"result_path", resultPath,
		"elapsed_ms", p.now().Sub(start).Milliseconds(),
	)

	if p.archiveDir != "" {
		if dst, err := archive(doc.SourcePath, p.archiveDir, p.now()); err != nil {
			log.Warn("processor.archive.failed", "err", err)
		} else {
			log.Info("processor.archived", "archive_path", dst)
		}
	}
	return out, nil
}

// fail records a document-level error: nothing was persisted.
// Errors caused by cancellation release the claim instead.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, out ProcessResult, id, token string, cause error) (ProcessResult, error) {
	if ctx.Err() != nil {
		return p.release(ctx, log, out, id, token, errors.Join(cause, ctx.Err()))
	}
	details := errorDetails(cause)
	log.Error("processor.failed", "kind", common.KindOf(cause), "err", cause)
	if err := p.docs.Fail(context.WithoutCancel(ctx), id, token, details, p.now().UTC()); err != nil {
		log.Error("processor.mark_failed.failed", "err", err)
		return out, errors.Join(cause, err)
	}
	out.Status = constants.DocumentFailed
	return out, cause
}

// release gives the claim back and leaves the document in_progress for a later attempt.
func (p *Processor) release(ctx context.Context, log *slog.Logger, out ProcessResult, id, token string, cause error) (ProcessResult, error) {
	log.Warn("processor.released", "err", cause)
	if err := p.docs.Release(context.WithoutCancel(ctx), id, token, errorDetails(cause)); err != nil {
		log.Error("processor.release.failed", "err", err)
		return out, errors.Join(cause, err)
	}
	out.Status = constants.DocumentInProgress
	return out, cause
}

// Recover releases claims left behind by an unclean stop and returns the source
// paths of every document that still needs processing.
func (p *Processor) Recover(ctx context.Context) ([]string, error) {
	n, err := p.docs.RecoverStale(ctx)
	if err != nil {
		return nil, common.NewAppError(common.CodeState, "recover stale claims", err)
	}
	var paths []string
	for _, st := range []constants.DocumentStatus{constants.DocumentInProgress, constants.DocumentPending} {
		docs, err := p.docs.List(ctx, st)
		if err != nil {
			return nil, common.NewAppError(common.CodeState, "list documents", err)
		}
		for _, d := range docs {
			paths = append(paths, d.SourcePath)
		}
	}
	p.logger.Info("processor.recovered", "released", n, "resumable", len(paths))
	return paths, nil
}

// Retrigger is the explicit failed -> pending transition. ref is a document ID
// or a source path; for a path the most recent document is used.
func (p *Processor) Retrigger(ctx context.Context, ref string) (*entity.Document, error) {
	doc, err := p.docs.Get(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		doc, err = p.latestForPath(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if doc.Status != constants.DocumentFailed {
		return nil, common.NewAppError(common.CodeState,
			fmt.Sprintf("document %s is %s; only failed documents can be retried", doc.ID, doc.Status), nil)
	}
	doc, err = p.docs.Requeue(ctx, doc.ID)
	if err != nil {
		return nil, common.NewAppError(common.CodeState, "requeue document", err)
	}
	p.logger.Info("processor.retriggered", "document_id", doc.ID, "path", doc.SourcePath)
	return doc, nil
}

func (p *Processor) latestForPath(ctx context.Context, path string) (*entity.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	docs, err := p.docs.FindByPath(ctx, abs)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, repository.ErrNotFound)
	}
	return &docs[0], nil
}

func errorDetails(err error) string {
	if kind := common.KindOf(err); kind != "" {
		msg := err.Error()
		if strings.HasPrefix(msg, kind) {
			return msg
		}
		return kind + ": " + msg
	}
	return err.Error()
}

// archive moves src into dir, appending a timestamp to the name on collision.
func archive(src, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(src)
	dst := filepath.Join(dir, base)
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(base)
		dst = filepath.Join(dir, strings.TrimSuffix(base, ext)+"-"+now.Format("20060102T150405")+ext)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}
