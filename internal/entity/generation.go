package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joseph-ayodele/brd-breakdown/constants"
)

// Generation is one attempt to produce epics for a Document.
//
// Epics holds `{}` while processing, the epic array once completed, and a
// FailurePayload once failed.
type Generation struct {
	ID          int                        `json:"id"`
	DocumentID  int                        `json:"documentId"`
	Epics       json.RawMessage            `json:"epics"`
	Status      constants.GenerationStatus `json:"status"`
	CreatedAt   time.Time                  `json:"createdAt"`
	CompletedAt *time.Time                 `json:"completedAt"`
}

// FailurePayload is stored in Generation.Epics for failed generations.
type FailurePayload struct {
	Error string                `json:"error"`
	Code  constants.FailureCode `json:"code"`
}

// EmptyEpics is the placeholder written when a generation is created.
var EmptyEpics = json.RawMessage(`{}`)

// DecodeEpics returns the epics of a completed generation.
func (g *Generation) DecodeEpics() ([]Epic, error) {
	if g.Status != constants.GenerationStatusCompleted {
		return nil, fmt.Errorf("generation %d is %s, not %s", g.ID, g.Status, constants.GenerationStatusCompleted)
	}
	var epics []Epic
	if err := json.Unmarshal(g.Epics, &epics); err != nil {
		return nil, fmt.Errorf("decode epics: %w", err)
	}
	return epics, nil
}

// Failure returns the failure payload of a failed generation.
func (g *Generation) Failure() (FailurePayload, bool) {
	if g.Status != constants.GenerationStatusFailed {
		return FailurePayload{}, false
	}
	var p FailurePayload
	if err := json.Unmarshal(g.Epics, &p); err != nil {
		return FailurePayload{}, false
	}
	return p, true
}
