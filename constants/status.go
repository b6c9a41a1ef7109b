package constants

// GenerationStatus is the canonical status for rows in generations.
type GenerationStatus string

// Stable values (store these exact strings in DB).
const (
	GenerationStatusProcessing GenerationStatus = "processing" // created, LLM call in flight
	GenerationStatusCompleted  GenerationStatus = "completed"  // terminal, epics populated
	GenerationStatusFailed     GenerationStatus = "failed"     // terminal, epics holds the failure payload
)

// GenerationStatuses holds every allowed value, in lifecycle order.
var GenerationStatuses = []string{
	string(GenerationStatusProcessing),
	string(GenerationStatusCompleted),
	string(GenerationStatusFailed),
}

// IsTerminal reports whether no further transition is allowed from s.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// Valid reports whether s is one of GenerationStatuses.
func (s GenerationStatus) Valid() bool {
	for _, v := range GenerationStatuses {
		if string(s) == v {
			return true
		}
	}
	return false
}
