package models

import "time"

// Ledger statuses.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

// LedgerEntry is the Firestore record kept for every processed input file.
type LedgerEntry struct {
	FileHash         string    `firestore:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	StagingKey       string    `firestore:"stagingKey,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	Confidence       float64   `firestore:"confidence"`
	DurationMillis   int64     `firestore:"durationMs"`
	Attempts         int       `firestore:"attempts,omitempty"`
	OutputPath       string    `firestore:"outputPath,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
}
