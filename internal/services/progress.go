package services

import (
	"fmt"
	"io"
	"sync"

	"github.com/Lllllllleong/visionocrbatch/internal/models"
	"github.com/schollz/progressbar/v3"
)

// BarProgress draws a terminal progress bar counting finished files.
type BarProgress struct {
	out io.Writer

	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	failed int
}

func NewBarProgress(out io.Writer) *BarProgress {
	return &BarProgress{out: out}
}

func (p *BarProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("recognizing"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *BarProgress) Done(report models.FileReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	if !report.Skipped && !report.Succeeded() {
		p.failed++
		p.bar.Describe(fmt.Sprintf("recognizing (%d failed)", p.failed))
	}
	_ = p.bar.Add(1)
}

// Failed is the number of files reported as failed so far.
func (p *BarProgress) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
