package llm

import "context"

// ImageInput is an image sent alongside the prompt text.
type ImageInput struct {
	Label    string // what the image belongs to, e.g. "1(a)"
	MIMEType string
	Data     []byte
}

// Prompt is one multimodal request. Exactly one Prompt is sent per major question attempt.
type Prompt struct {
	RequestID string
	System    string
	User      string
	Images    []ImageInput
}

// Completion is the raw model reply.
type Completion struct {
	Content      string
	Model        string
	FinishReason string
}

// Solver is the AI service boundary the dispatcher depends on.
// Errors must carry TRANSIENT_DISPATCH or PERMANENT_DISPATCH so callers can decide on retries.
type Solver interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
}

// AnswerItem is one answered subquestion as returned by the model.
type AnswerItem struct {
	SubID       string `json:"sub_id"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// AnswerSet is the JSON document the model must return for a major question.
type AnswerSet struct {
	ProblemID   string       `json:"problem_id"`
	ProblemText string       `json:"problem_text,omitempty"`
	Answers     []AnswerItem `json:"answers"`
}
