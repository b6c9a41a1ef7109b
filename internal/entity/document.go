package entity

import "time"

// Document is an uploaded BRD and its extracted plain text. Immutable after creation.
type Document struct {
	ID         int       `json:"id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	UploadedAt time.Time `json:"uploadedAt"`
}
