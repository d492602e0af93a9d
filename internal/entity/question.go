package entity

import (
	"fmt"

	"github.com/joseph-ayodele/homework-solver/constants"
)

// PreambleLabel is the label of the synthetic unit holding text before the first major question.
const PreambleLabel = "preamble"

// ImageRef points at an image of a PageRecord.
type ImageRef struct {
	Page  int `json:"page"`
	Index int `json:"index"`
}

// MajorQuestion is a top-level question. It owns its subquestions.
type MajorQuestion struct {
	Sequence     int                      `json:"sequence"`
	Label        string                   `json:"label"`
	Title        string                   `json:"title"` // stem text following the label
	Subquestions []Subquestion            `json:"subquestions"`
	Images       []ImageRef               `json:"images,omitempty"` // attached to the stem
	Pages        []int                    `json:"pages"`
	Preamble     bool                     `json:"preamble,omitempty"`
	Status       constants.DispatchStatus `json:"status"`
}

// Subquestion is a labeled part of a MajorQuestion.
type Subquestion struct {
	Parent      string     `json:"parent"` // label of the owning major question
	Label       string     `json:"label"`
	Prompt      string     `json:"prompt"`
	Images      []ImageRef `json:"images,omitempty"`
	Implicit    bool       `json:"implicit,omitempty"` // the major question had no labeled parts
	Answer      string     `json:"answer,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
}

// Advance moves the dispatch status forward. Status never regresses and terminal states are final.
func (m *MajorQuestion) Advance(next constants.DispatchStatus) error {
	if m.Status == "" {
		m.Status = constants.DispatchNotSent
	}
	if !m.Status.CanAdvance(next) {
		return fmt.Errorf("major question %s: invalid dispatch transition %s -> %s", m.Label, m.Status, next)
	}
	m.Status = next
	return nil
}

// Dispatchable reports whether the question is sent to the AI service.
func (m *MajorQuestion) Dispatchable() bool {
	return !m.Preamble
}
