package model

import (
	"time"
)

// Source identifies the intake path that triggered an ingestion.
type Source string

const (
	SourceWatch  Source = "watch"
	SourceUpload Source = "upload"
	SourceCLI    Source = "cli"
)

// EventType represents the type of dataset event.
type EventType string

const (
	EventTypeDatasetWritten EventType = "dataset.written"
)

// DatasetEvent is published after a dataset has been persisted.
type DatasetEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Name        string    `json:"name"`
	Source      Source    `json:"source"`
	DatasetUUID string    `json:"dataset_uuid"`
	Pairs       int       `json:"pairs"`
	CreatedAt   time.Time `json:"created_at"`
}
