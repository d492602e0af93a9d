// Package aggregate merges dispatch outcomes into the persisted answer set.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// FailureNotDispatched marks a major question for which no outcome was produced.
const FailureNotDispatched = "NOT_DISPATCHED"

// Meta carries the provenance stamped on every result.
type Meta struct {
	PromptVersion string
	Model         string
	GeneratedAt   time.Time
}

// Aggregate builds the DocumentResult. It is a pure merge: output order follows
// question sequence no matter how outcomes are ordered, and every dispatchable
// question appears exactly once, answered or carrying a failure marker.
// Two outcomes for the same question are an error.
func Aggregate(doc entity.Document, questions []entity.MajorQuestion, outcomes []entity.DispatchOutcome, meta Meta) (entity.DocumentResult, error) {
	bySeq := make(map[int]entity.DispatchOutcome, len(outcomes))
	for _, o := range outcomes {
		if _, dup := bySeq[o.Sequence]; dup {
			return entity.DocumentResult{}, fmt.Errorf("duplicate outcome for question %s (sequence %d)", o.Label, o.Sequence)
		}
		bySeq[o.Sequence] = o
	}

	res := entity.DocumentResult{
		DocumentID:     doc.ID,
		SourcePath:     doc.SourcePath,
		ContentHash:    doc.ContentHash,
		PromptVersion:  meta.PromptVersion,
		Model:          meta.Model,
		GeneratedAt:    meta.GeneratedAt.UTC(),
		MajorQuestions: make([]entity.MajorQuestionResult, 0, len(questions)),
	}

	ordered := append([]entity.MajorQuestion(nil), questions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	answered, failed := 0, 0
	for _, q := range ordered {
		if q.Preamble {
			res.Preamble = q.Title
			continue
		}
		mr := entity.MajorQuestionResult{
			Sequence:     q.Sequence,
			Label:        q.Label,
			Title:        q.Title,
			Pages:        q.Pages,
			Subquestions: make([]entity.SubquestionResult, 0, len(q.Subquestions)),
		}
		o, ok := bySeq[q.Sequence]
		answers := map[string]entity.Answer{}
		if ok && o.Status == constants.DispatchAnswered {
			for _, a := range o.Answers {
				answers[a.Label] = a
			}
		}
		for _, s := range q.Subquestions {
			sr := entity.SubquestionResult{Label: s.Label, Text: s.Prompt}
			if a, found := answers[s.Label]; found {
				sr.Answer = a.Answer
				sr.Explanation = a.Explanation
			}
			mr.Subquestions = append(mr.Subquestions, sr)
		}

		switch {
		case !ok:
			mr.Status = string(constants.DispatchFailed)
			mr.Failure = &entity.Failure{Kind: FailureNotDispatched}
			failed++
		case o.Status == constants.DispatchAnswered:
			mr.Status = string(constants.DispatchAnswered)
			answered++
		default:
			mr.Status = string(constants.DispatchFailed)
			mr.Failure = &entity.Failure{Kind: o.ErrorKind, Message: o.Error, Attempts: o.Attempts}
			failed++
		}
		res.MajorQuestions = append(res.MajorQuestions, mr)
	}

	switch {
	case failed == 0:
		res.Status = constants.ResultAnswered
	case answered == 0:
		res.Status = constants.ResultUnanswered
	default:
		res.Status = constants.ResultPartial
	}
	return res, nil
}
