package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// ExtractJSONObject pulls the JSON object out of a model reply:
// it strips ```json fences and any prose around the outermost braces.
func ExtractJSONObject(content string) (string, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no json object in response")
	}
	return s[start : end+1], nil
}

var (
	topLevelSynonyms = map[string]string{
		"problem":     "problem_id",
		"question_id": "problem_id",
		"id":          "problem_id",
		"question":    "problem_text",
		"sub_answers": "answers",
		"parts":       "answers",
	}
	answerSynonyms = map[string]string{
		"sub_question": "sub_id",
		"subquestion":  "sub_id",
		"part":         "sub_id",
		"label":        "sub_id",
		"id":           "sub_id",
		"reason":       "explanation",
		"reasoning":    "explanation",
		"solution":     "explanation",
		"final_answer": "answer",
	}
	answerKeys = map[string]struct{}{"sub_id": {}, "answer": {}, "explanation": {}}
	topKeys    = map[string]struct{}{"problem_id": {}, "problem_text": {}, "answers": {}}
)

// NormalizeAnswerJSON
// - Renames known synonyms (reason -> explanation, label -> sub_id)
// - Coerces numbers and booleans to strings
// - Removes unknown keys
// It never invents values; a reply missing labels still fails validation afterwards.
func NormalizeAnswerJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changed []string
	rename(m, topLevelSynonyms, &changed)
	for k, v := range m {
		if k == "answers" {
			continue
		}
		if s, ok := asString(v); ok {
			m[k] = s
		}
	}

	if list, ok := m["answers"].([]any); ok {
		for i, it := range list {
			am, ok := it.(map[string]any)
			if !ok {
				continue
			}
			rename(am, answerSynonyms, &changed)
			for k, v := range maps.Clone(am) {
				if _, ok := answerKeys[k]; !ok {
					delete(am, k)
					changed = append(changed, fmt.Sprintf("answers[%d].%s(unknown)", i, k))
					continue
				}
				if s, ok := asString(v); ok {
					am[k] = s
				}
			}
		}
	}
	for k := range maps.Clone(m) {
		if _, ok := topKeys[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Debug("llm.answer.normalize_sanitize", "changed", changed)
	}
	return out, changed, nil
}

func rename(m map[string]any, synonyms map[string]string, changed *[]string) {
	for from, to := range synonyms {
		v, ok := m[from]
		if !ok {
			continue
		}
		// don't overwrite existing value if already present
		if _, exists := m[to]; !exists {
			m[to] = v
			*changed = append(*changed, from+"->"+to)
		}
		delete(m, from)
	}
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
