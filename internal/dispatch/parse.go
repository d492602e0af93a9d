package dispatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
	"github.com/joseph-ayodele/homework-solver/internal/llm"
	"github.com/joseph-ayodele/homework-solver/internal/segment"
)

var answerSchema = llm.BuildAnswerJSONSchema()

// ParseAnswers maps a model reply onto the subquestions of mq.
// Every subquestion must be answered exactly once under a recognisable label;
// anything else is a RESPONSE_FORMAT error rather than a guess.
func ParseAnswers(content string, mq entity.MajorQuestion, logger *slog.Logger) ([]entity.Answer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	obj, err := llm.ExtractJSONObject(content)
	if err != nil {
		return nil, common.ResponseFormatError("unparseable response", err)
	}
	clean, _, err := llm.NormalizeAnswerJSON([]byte(obj), logger)
	if err != nil {
		return nil, common.ResponseFormatError("unparseable response", err)
	}
	if err := llm.ValidateJSONAgainstSchema(answerSchema, clean); err != nil {
		return nil, common.ResponseFormatError("response does not match answer schema", err)
	}
	var set llm.AnswerSet
	if err := json.Unmarshal(clean, &set); err != nil {
		return nil, common.ResponseFormatError("decode answers", err)
	}

	if set.ProblemID != "" && !sameProblem(set.ProblemID, mq.Label) {
		logger.Warn("dispatch.parse.problem_id_mismatch", "expected", mq.Label, "got", set.ProblemID)
	}

	index := make(map[string]int, len(mq.Subquestions))
	for i, s := range mq.Subquestions {
		index[segment.NormalizeLabel(s.Label)] = i
	}

	answers := make([]entity.Answer, len(mq.Subquestions))
	seen := make([]bool, len(mq.Subquestions))
	for _, item := range set.Answers {
		i, ok := matchLabel(item.SubID, mq.Label, index)
		if !ok {
			return nil, common.ResponseFormatError(fmt.Sprintf("unknown sub_id %q for problem %s", item.SubID, mq.Label), nil)
		}
		if seen[i] {
			return nil, common.ResponseFormatError(fmt.Sprintf("sub_id %q answered more than once", item.SubID), nil)
		}
		seen[i] = true
		answers[i] = entity.Answer{
			Label:       mq.Subquestions[i].Label,
			Answer:      item.Answer,
			Explanation: item.Explanation,
		}
	}
	var missing []string
	for i, ok := range seen {
		if !ok {
			missing = append(missing, mq.Subquestions[i].Label)
		}
	}
	if len(missing) > 0 {
		return nil, common.ResponseFormatError("missing answers for "+strings.Join(missing, ", "), nil)
	}
	return answers, nil
}

// matchLabel accepts "a", "(a)", "A." and the prefixed forms "1a", "1(a)" for problem 1.
func matchLabel(subID, major string, index map[string]int) (int, bool) {
	n := segment.NormalizeLabel(subID)
	if i, ok := index[n]; ok {
		return i, true
	}
	m := segment.NormalizeLabel(major)
	if rest, ok := strings.CutPrefix(n, m); ok && rest != "" {
		if i, ok := index[segment.NormalizeLabel(rest)]; ok {
			return i, true
		}
	}
	return 0, false
}

func sameProblem(got, want string) bool {
	g := strings.ToLower(strings.TrimSpace(got))
	for _, p := range []string{"problem", "question", "q", "第"} {
		g = strings.TrimSpace(strings.TrimPrefix(g, p))
	}
	g = strings.TrimSuffix(g, "题")
	return segment.NormalizeLabel(g) == segment.NormalizeLabel(want)
}
