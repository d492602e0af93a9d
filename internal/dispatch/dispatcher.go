package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
	"github.com/joseph-ayodele/homework-solver/internal/llm"
)

// Dispatcher sends each major question to the solver as one consolidated request.
type Dispatcher struct {
	solver  llm.Solver
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Dispatcher)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithMinInterval spaces consecutive AI calls at least d apart.
func WithMinInterval(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

func NewDispatcher(solver llm.Solver, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{solver: solver, policy: DefaultRetryPolicy(), logger: logger}
	for _, o := range opts {
		o(d)
	}
	d.policy = d.policy.withDefaults()
	return d
}

// Dispatch solves one major question. It never returns an error: failures are
// reported in the outcome and leave sibling questions untouched.
// mq's status moves not_sent -> sent -> answered|failed and its subquestions receive the answers.
func (d *Dispatcher) Dispatch(ctx context.Context, pages []entity.PageRecord, mq *entity.MajorQuestion) entity.DispatchOutcome {
	out := entity.DispatchOutcome{Sequence: mq.Sequence, Label: mq.Label}
	log := d.logger.With("document_id", common.DocumentIDFromContext(ctx), "question", mq.Label)

	if !mq.Dispatchable() {
		return d.fail(mq, out, common.NewAppError(common.CodeState, "preamble is never dispatched", nil))
	}
	if err := mq.Advance(constants.DispatchSent); err != nil {
		return d.fail(mq, out, common.NewAppError(common.CodeState, "advance dispatch status", err))
	}

	prompt := llm.Prompt{
		System: llm.BuildSystemPrompt(),
		User:   llm.BuildUserPrompt(*mq),
		Images: resolveImages(pages, *mq),
	}

	var answers []entity.Answer
	attempts, err := d.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return common.TransientDispatchError("rate limiter", err)
			}
		}
		prompt.RequestID = uuid.New().String()
		start := time.Now()
		res, err := d.solver.Complete(ctx, prompt)
		if err != nil {
			log.Warn("dispatch.attempt.failed",
				"attempt", attempt, "kind", common.KindOf(err), "err", err,
				"elapsed_ms", time.Since(start).Milliseconds())
			return err
		}
		parsed, err := ParseAnswers(res.Content, *mq, log)
		if err != nil {
			log.Warn("dispatch.attempt.bad_response", "attempt", attempt, "err", err, "content_len", len(res.Content))
			return err
		}
		answers = parsed
		return nil
	})
	out.Attempts = attempts
	if err != nil {
		log.Error("dispatch.failed", "attempts", attempts, "kind", common.KindOf(err), "err", err)
		return d.fail(mq, out, err)
	}

	for i := range mq.Subquestions {
		mq.Subquestions[i].Answer = answers[i].Answer
		mq.Subquestions[i].Explanation = answers[i].Explanation
	}
	if err := mq.Advance(constants.DispatchAnswered); err != nil {
		return d.fail(mq, out, common.NewAppError(common.CodeState, "advance dispatch status", err))
	}
	out.Status = constants.DispatchAnswered
	out.Answers = answers
	log.Info("dispatch.answered", "attempts", attempts, "answers", len(answers))
	return out
}

func (d *Dispatcher) fail(mq *entity.MajorQuestion, out entity.DispatchOutcome, err error) entity.DispatchOutcome {
	if mq.Status == constants.DispatchSent {
		_ = mq.Advance(constants.DispatchFailed)
	}
	out.Status = constants.DispatchFailed
	out.ErrorKind = common.KindOf(err)
	if out.ErrorKind == "" {
		out.ErrorKind = common.CodeTransientDispatch
	}
	out.Error = err.Error()
	return out
}

// DispatchAll dispatches every dispatchable question through exec. Outcomes follow
// the order of the dispatchable questions in qs.
func (d *Dispatcher) DispatchAll(ctx context.Context, exec Executor, pages []entity.PageRecord, qs []entity.MajorQuestion) []entity.DispatchOutcome {
	if exec == nil {
		exec = Sequential{}
	}
	tasks := make([]Task, 0, len(qs))
	for i := range qs {
		if !qs[i].Dispatchable() {
			continue
		}
		mq := &qs[i]
		tasks = append(tasks, func(ctx context.Context) entity.DispatchOutcome {
			return d.Dispatch(ctx, pages, mq)
		})
	}
	return exec.Execute(ctx, tasks)
}

func resolveImages(pages []entity.PageRecord, mq entity.MajorQuestion) []llm.ImageInput {
	byIndex := make(map[int]entity.PageRecord, len(pages))
	for _, p := range pages {
		byIndex[p.Index] = p
	}
	var out []llm.ImageInput
	add := func(label string, refs []entity.ImageRef) {
		for _, r := range refs {
			p, ok := byIndex[r.Page]
			if !ok || r.Index < 0 || r.Index >= len(p.Images) {
				continue
			}
			img := p.Images[r.Index]
			out = append(out, llm.ImageInput{Label: label, MIMEType: img.MIMEType, Data: img.Data})
		}
	}
	add(mq.Label, mq.Images)
	for _, s := range mq.Subquestions {
		if s.Implicit {
			add(mq.Label, s.Images)
			continue
		}
		add(fmt.Sprintf("%s(%s)", mq.Label, s.Label), s.Images)
	}
	return out
}
