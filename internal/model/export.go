package model

import "time"

// SubmissionExport is the top-level JSON structure for submission export.
type SubmissionExport struct {
	ExportedAt         time.Time          `json:"exported_at"`
	CatalogFingerprint string             `json:"catalog_fingerprint"`
	Total              int                `json:"total"`
	Eligible           int                `json:"eligible"`
	Results            []SubmissionResult `json:"results"`
}

// SubmissionResult holds one stored submission and its delivery history.
type SubmissionResult struct {
	Submission
	Deliveries []Delivery `json:"deliveries"`
}
