package llm

import "strings"

// MinEpics and the story range are what the prompt asks for. They are checked
// after validation for logging only.
const (
	MinEpics          = 7
	MinStoriesPerEpic = 3
	MaxStoriesPerEpic = 4
)

// StoryStatuses are the board columns the model may assign to a story.
var StoryStatuses = []string{"To Do", "In Progress", "Ready", "Done"}

const promptExample = `{
  "epics": [
    {
      "epic_name": "Epic name",
      "epic_description": "What the epic covers and why it matters",
      "user_stories": [
        {
          "story_name": "Story name",
          "description": "As a <user type>, I want <goal> so that <benefit>",
          "label": "Category",
          "status": "To Do",
          "acceptance_criteria": ["Criterion 1", "Criterion 2", "Criterion 3"],
          "nfrs": ["NFR 1", "NFR 2"],
          "definition_of_done": ["DoD 1", "DoD 2", "DoD 3"],
          "definition_of_ready": ["DoR 1", "DoR 2", "DoR 3"]
        }
      ]
    }
  ]
}`

// BuildPrompt returns the single user message sent to the model. Only the
// document text varies between calls.
func BuildPrompt(documentText string) string {
	parts := []string{
		"You are an experienced business analyst. Break the Business Requirements Document (BRD) below into at least 7 Epics, with 3 to 4 User Stories in every Epic.",
		"",
		"Every Epic has:",
		"- epic_name: a short, clear name",
		"- epic_description: a detailed description of the scope of the epic",
		"",
		"Every User Story has:",
		"- story_name: a short, clear name",
		`- description: the story written as "As a [user type], I want [goal] so that [benefit]"`,
		`- label: a category tag such as "Authentication", "UI/UX" or "API"`,
		"- status: one of " + quoteJoin(StoryStatuses),
		"- acceptance_criteria: 3 to 5 specific, testable criteria",
		"- nfrs: 2 to 3 non-functional requirements",
		"- definition_of_done: 3 to 4 completion criteria",
		"- definition_of_ready: 3 to 4 readiness criteria",
		"",
		"Produce no fewer than 7 Epics, each holding 3 to 4 User Stories.",
		"",
		"Respond with ONLY a valid JSON object shaped exactly like this:",
		promptExample,
		"",
		"BRD Content:",
		documentText,
	}
	return strings.Join(parts, "\n")
}

func quoteJoin(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = `"` + v + `"`
	}
	return strings.Join(q, ", ")
}
