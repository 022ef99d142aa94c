package services

import (
	"errors"
	"testing"
	"time"

	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLedgerEntry(t *testing.T) {
	input := writePNG(t, t.TempDir(), "roll_1.png")
	key, err := models.NewStagingKey(input)
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		report     models.FileReport
		status     string
		confidence float64
		errDetails string
	}{
		{
			name: "succeeded",
			report: models.FileReport{InputPath: input, Result: &models.PipelineResult{
				OutputPath: "out/roll_1.png", Confidence: 0.8, Duration: 1500 * time.Millisecond, Attempts: 2,
			}},
			status:     models.StatusSucceeded,
			confidence: 0.8,
		},
		{
			name:   "skipped",
			report: models.FileReport{InputPath: input, Skipped: true},
			status: models.StatusSkipped,
		},
		{
			name: "failed",
			report: models.FileReport{InputPath: input, Result: &models.PipelineResult{Attempts: 10},
				Err: errors.New("giving up after 10 attempts")},
			status:     models.StatusFailed,
			errDetails: "giving up after 10 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := NewLedgerEntry(tt.report, now)
			require.NoError(t, err)

			assert.Equal(t, tt.status, entry.Status)
			assert.Equal(t, string(key), entry.StagingKey)
			assert.Equal(t, "roll_1.png", entry.OriginalFilename)
			assert.Len(t, entry.FileHash, 64)
			assert.Equal(t, tt.confidence, entry.Confidence)
			assert.Equal(t, tt.errDetails, entry.ErrorDetails)
			assert.Equal(t, now, entry.CreatedAt)
		})
	}

	entry, err := NewLedgerEntry(tests[0].report, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, entry.DurationMillis)
	assert.Equal(t, 2, entry.Attempts)
	assert.Equal(t, "out/roll_1.png", entry.OutputPath)
}
