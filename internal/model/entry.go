package model

import (
	"time"
)

// AudioEntry represents one recorded voice note and its processing result
type AudioEntry struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	URI       string    `json:"uri"`
	Processed bool      `json:"processed"`
	Data      Result    `json:"data,omitzero"`
	Sent      bool      `json:"sent"`
	ReportID  string    `json:"reportId,omitempty"`
}

// EntryState is the lifecycle state of an entry as seen by observers.
// StateProcessing is never persisted.
type EntryState string

const (
	StateUnprocessed EntryState = "unprocessed"
	StateProcessing  EntryState = "processing"
	StateProcessed   EntryState = "processed"
)

// State derives the persisted state of the entry
func (e AudioEntry) State() EntryState {
	if e.Processed {
		return StateProcessed
	}
	return StateUnprocessed
}

// Title returns the processed title, if any
func (e AudioEntry) Title() string {
	return e.Data.Title()
}
