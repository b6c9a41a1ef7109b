package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
)

// ParseGenerationResult locates the JSON object in a model reply, validates it
// and decodes it. Any invalid epic or story rejects the whole reply.
func ParseGenerationResult(content string) (entity.GenerationResult, error) {
	if strings.TrimSpace(content) == "" {
		return entity.GenerationResult{}, NewError(constants.FailureEmptyResponse, nil, "no content received from LLM API")
	}

	obj, ok := FindJSONObject(content)
	if !ok {
		return entity.GenerationResult{}, NewError(constants.FailureMalformedResponse, nil, "no valid JSON object found in response")
	}
	if !json.Valid([]byte(obj)) {
		var v any
		err := json.Unmarshal([]byte(obj), &v)
		return entity.GenerationResult{}, NewError(constants.FailureMalformedResponse, err, "failed to parse JSON response")
	}

	if err := ValidateGenerationJSON([]byte(obj)); err != nil {
		return entity.GenerationResult{}, NewError(constants.FailureSchemaViolation, err, "invalid response structure")
	}

	var out entity.GenerationResult
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return entity.GenerationResult{}, NewError(constants.FailureSchemaViolation, err, "invalid response structure")
	}
	normalizeResult(&out)
	return out, nil
}

// normalizeResult replaces nil slices with empty ones so stored JSON never has nulls.
func normalizeResult(r *entity.GenerationResult) {
	if r.Epics == nil {
		r.Epics = []entity.Epic{}
	}
	for i := range r.Epics {
		e := &r.Epics[i]
		if e.UserStories == nil {
			e.UserStories = []entity.UserStory{}
		}
		for j := range e.UserStories {
			s := &e.UserStories[j]
			if s.NFRs == nil {
				s.NFRs = []string{}
			}
			if s.AcceptanceCriteria == nil {
				s.AcceptanceCriteria = []string{}
			}
			if s.DefinitionOfDone == nil {
				s.DefinitionOfDone = []string{}
			}
			if s.DefinitionOfReady == nil {
				s.DefinitionOfReady = []string{}
			}
		}
	}
}

// QualityWarnings lists where r falls short of the counts the prompt asks for.
func QualityWarnings(r entity.GenerationResult) []string {
	var warns []string
	if len(r.Epics) < MinEpics {
		warns = append(warns, fmt.Sprintf("got %d epics, asked for at least %d", len(r.Epics), MinEpics))
	}
	for _, e := range r.Epics {
		n := len(e.UserStories)
		if n < MinStoriesPerEpic || n > MaxStoriesPerEpic {
			warns = append(warns, fmt.Sprintf("epic %q has %d stories, asked for %d-%d", e.EpicName, n, MinStoriesPerEpic, MaxStoriesPerEpic))
		}
	}
	return warns
}
