package llm

import (
	"context"

	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
)

// StoryGenerator turns BRD text into validated epics and user stories.
type StoryGenerator interface {
	Generate(ctx context.Context, documentText string) (entity.GenerationResult, error)
}
