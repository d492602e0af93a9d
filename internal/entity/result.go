package entity

import (
	"time"

	"github.com/joseph-ayodele/homework-solver/constants"
)

// Answer is the model's answer to a single subquestion.
type Answer struct {
	Label       string `json:"label"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// DispatchOutcome is what the dispatcher reports for one major question.
type DispatchOutcome struct {
	Sequence  int                      `json:"sequence"`
	Label     string                   `json:"label"`
	Status    constants.DispatchStatus `json:"status"`
	Answers   []Answer                 `json:"answers,omitempty"` // ordered like the subquestions
	Attempts  int                      `json:"attempts"`
	ErrorKind string                   `json:"error_kind,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Failure marks a major question that could not be answered.
type Failure struct {
	Kind     string `json:"kind"`
	Message  string `json:"message,omitempty"`
	Attempts int    `json:"attempts"`
}

// SubquestionResult is the persisted form of one subquestion.
type SubquestionResult struct {
	Label       string `json:"label"`
	Text        string `json:"text"`
	Answer      string `json:"answer,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// MajorQuestionResult is the persisted form of one major question.
type MajorQuestionResult struct {
	Sequence     int                 `json:"sequence"`
	Label        string              `json:"label"`
	Title        string              `json:"title,omitempty"`
	Pages        []int               `json:"pages"`
	Status       string              `json:"status"`
	Subquestions []SubquestionResult `json:"subquestions"`
	Failure      *Failure            `json:"failure,omitempty"`
}

// DocumentResult is the answer set persisted for a Document.
type DocumentResult struct {
	DocumentID     string                 `json:"document_id"`
	SourcePath     string                 `json:"source_path"`
	ContentHash    string                 `json:"content_hash"`
	Status         constants.ResultStatus `json:"status"`
	Preamble       string                 `json:"preamble,omitempty"`
	MajorQuestions []MajorQuestionResult  `json:"major_questions"`
	PromptVersion  string                 `json:"prompt_version"`
	Model          string                 `json:"model,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
}
