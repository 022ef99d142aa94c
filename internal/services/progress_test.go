package services

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBarProgressCountsFailures(t *testing.T) {
	var out bytes.Buffer
	p := NewBarProgress(&out)

	p.Done(models.FileReport{InputPath: "early.png", Err: errors.New("ignored before start")})
	assert.Zero(t, p.Failed())

	p.Start(3)
	p.Done(models.FileReport{InputPath: "a.png", Result: &models.PipelineResult{OutputPath: "a.png"}})
	p.Done(models.FileReport{InputPath: "b.png", Skipped: true})
	p.Done(models.FileReport{InputPath: "c.png", Result: &models.PipelineResult{}, Err: errors.New("boom")})

	assert.Equal(t, 1, p.Failed())
	assert.NotEmpty(t, out.String())
}
