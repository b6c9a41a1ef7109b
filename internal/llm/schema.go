package llm

// BuildGenerationJSONSchema returns the JSON Schema (draft 2020-12) a model
// response must satisfy. nfrs is the only optional story field. Unknown
// properties are tolerated and dropped when the result is decoded.
func BuildGenerationJSONSchema() map[string]any {
	story := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story_name":          stringProp(),
			"description":         stringProp(),
			"label":               stringProp(),
			"status":              stringProp(),
			"acceptance_criteria": stringArrayProp(),
			"nfrs":                stringArrayProp(),
			"definition_of_done":  stringArrayProp(),
			"definition_of_ready": stringArrayProp(),
		},
		"required": []string{
			"story_name", "description", "label", "status",
			"acceptance_criteria", "definition_of_done", "definition_of_ready",
		},
	}

	epic := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"epic_name":        stringProp(),
			"epic_description": stringProp(),
			"user_stories":     map[string]any{"type": "array", "items": story},
		},
		"required": []string{"epic_name", "epic_description", "user_stories"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"epics": map[string]any{"type": "array", "items": epic},
		},
		"required": []string{"epics"},
	}
}

func stringProp() map[string]any {
	return map[string]any{"type": "string"}
}

func stringArrayProp() map[string]any {
	return map[string]any{"type": "array", "items": stringProp()}
}
