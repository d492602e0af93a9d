package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// PromptVersion identifies the prompt/response contract independently of the model provider.
// Bump it whenever the instructions or the answer schema change.
const PromptVersion = "homework-answers/v1"

// BuildSystemPrompt returns the instructions shared by every major question.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a meticulous tutor solving homework and test questions.",
		"You receive ONE problem with all of its labeled parts and any figures that belong to it.",
		"Solve every part. Use the figures when a part refers to them.",
		"Return ONLY a JSON object, no markdown, with this shape:",
		`{"problem_id": "<problem label>", "problem_text": "<short restatement>", "answers": [{"sub_id": "<part label>", "answer": "<final answer>", "explanation": "<brief reasoning>"}]}`,
		"Use exactly the part labels you are given as sub_id, once each, in the given order.",
		"Never merge parts, never invent parts, never output null.",
		"Answer in the language the problem is written in.",
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt renders a major question with every subquestion fragment.
func BuildUserPrompt(mq entity.MajorQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Problem %s\n", mq.Label)
	if t := strings.TrimSpace(mq.Title); t != "" {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	if len(mq.Images) > 0 {
		fmt.Fprintf(&b, "[%d figure(s) attached to the problem statement]\n", len(mq.Images))
	}

	b.WriteString("\nParts:\n")
	for _, s := range mq.Subquestions {
		if s.Implicit {
			fmt.Fprintf(&b, "- [%s] (the whole problem above)\n", s.Label)
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", s.Label, strings.TrimSpace(s.Prompt))
		if len(s.Images) > 0 {
			fmt.Fprintf(&b, "  [%d figure(s) attached to part %s]\n", len(s.Images), s.Label)
		}
	}

	labels := make([]string, 0, len(mq.Subquestions))
	for _, s := range mq.Subquestions {
		labels = append(labels, s.Label)
	}
	fmt.Fprintf(&b, "\nReturn problem_id %q and exactly these sub_id values: %s.", mq.Label, strings.Join(labels, ", "))
	return b.String()
}
