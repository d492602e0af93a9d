package llm

// BuildAnswerJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Label matching is left to the caller; the schema only pins the structure.
func BuildAnswerJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"sub_id":      map[string]any{"type": "string", "minLength": 1},
			"answer":      map[string]any{"type": "string", "minLength": 1},
			"explanation": map[string]any{"type": "string"},
		},
		"required": []string{"sub_id", "answer"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"problem_id":   map[string]any{"type": "string"},
			"problem_text": map[string]any{"type": "string"},
			"answers": map[string]any{
				"type":     "array",
				"items":    item,
				"minItems": 1,
			},
		},
		"required": []string{"answers"},
	}
}
