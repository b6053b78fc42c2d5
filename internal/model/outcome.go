package model

import (
	"time"
)

// OutcomeStatus is the terminal status of one ingestion.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// IngestionOutcome is the per-file result of a pipeline run.
type IngestionOutcome struct {
	Name        string        `json:"name"`
	Source      Source        `json:"source"`
	Status      OutcomeStatus `json:"status"`
	Stage       string        `json:"stage,omitempty"`
	Code        string        `json:"code,omitempty"`
	Error       string        `json:"error,omitempty"`
	DatasetURL  string        `json:"dataset_url,omitempty"`
	Pairs       int           `json:"pairs,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}

// UploadResponse is the response body of the upload endpoint.
type UploadResponse struct {
	Message string             `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
	Code    string             `json:"code,omitempty"`
	Results []IngestionOutcome `json:"results"`
}

// ListOutcomesResponse is the response for listing recent ingestions.
type ListOutcomesResponse struct {
	Ingestions []IngestionOutcome `json:"ingestions"`
	Total      int                `json:"total"`
}

// ListDatasetsResponse is the response for listing stored datasets.
type ListDatasetsResponse struct {
	Datasets []string `json:"datasets"`
	Total    int      `json:"total"`
}
