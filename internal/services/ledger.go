package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/visionocrbatch/internal/models"
)

// FirestoreLedger keeps one document per input file, keyed by staging key,
// so a re-run overwrites the previous outcome.
type FirestoreLedger struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreLedger(client *firestore.Client, collection string) *FirestoreLedger {
	return &FirestoreLedger{client: client, collection: collection}
}

func (l *FirestoreLedger) Record(ctx context.Context, report models.FileReport) error {
	entry, err := NewLedgerEntry(report, time.Now())
	if err != nil {
		return err
	}
	if _, err := l.client.Collection(l.collection).Doc(entry.StagingKey).Set(ctx, entry); err != nil {
		return fmt.Errorf("failed to write ledger entry for %s: %w", report.InputPath, err)
	}
	return nil
}

// NewLedgerEntry builds the ledger record of one file report.
func NewLedgerEntry(report models.FileReport, now time.Time) (models.LedgerEntry, error) {
	key, err := models.NewStagingKey(report.InputPath)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	entry := models.LedgerEntry{
		OriginalFilename: filepath.Base(report.InputPath),
		StagingKey:       string(key),
		CreatedAt:        now,
	}
	if hash, err := calculateFileHash(report.InputPath); err == nil {
		entry.FileHash = hash
	}
	if r := report.Result; r != nil {
		entry.DurationMillis = r.Duration.Milliseconds()
		entry.Attempts = r.Attempts
	}

	switch {
	case report.Skipped:
		entry.Status = models.StatusSkipped
	case report.Succeeded():
		entry.Status = models.StatusSucceeded
		entry.Confidence = report.Result.Confidence
		entry.OutputPath = report.Result.OutputPath
	default:
		entry.Status = models.StatusFailed
		if report.Err != nil {
			entry.ErrorDetails = report.Err.Error()
		}
	}
	return entry, nil
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
