package entity

// GenerationResult is the validated shape returned by the LLM.
type GenerationResult struct {
	Epics []Epic `json:"epics" yaml:"epics"`
}

type Epic struct {
	EpicName        string      `json:"epic_name" yaml:"epic_name"`
	EpicDescription string      `json:"epic_description" yaml:"epic_description"`
	UserStories     []UserStory `json:"user_stories" yaml:"user_stories"`
}

// UserStory.Status is a free-form board category ("To Do", "Ready", ...),
// unrelated to the generation lifecycle status.
type UserStory struct {
	StoryName          string   `json:"story_name" yaml:"story_name"`
	Description        string   `json:"description" yaml:"description"`
	Label              string   `json:"label" yaml:"label"`
	Status             string   `json:"status" yaml:"status"`
	AcceptanceCriteria []string `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	NFRs               []string `json:"nfrs" yaml:"nfrs"`
	DefinitionOfDone   []string `json:"definition_of_done" yaml:"definition_of_done"`
	DefinitionOfReady  []string `json:"definition_of_ready" yaml:"definition_of_ready"`
}

// StoryCount returns the total number of user stories across all epics.
func (r GenerationResult) StoryCount() int {
	n := 0
	for _, e := range r.Epics {
		n += len(e.UserStories)
	}
	return n
}
