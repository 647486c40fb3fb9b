package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
)

const (
	defaultProgressWidthConstant = 40
	progressLineTemplateConstant = "\r%s %s / %s"
	progressFinishedLineConstant = "\n"
	progressPercentStepConstant  = 0.01
)

// ProgressRenderer draws a single-line progress bar that is redrawn in place.
type ProgressRenderer struct {
	writer      io.Writer
	bar         progress.Model
	mutex       sync.Mutex
	lastPercent float64
	rendered    bool
}

// NewProgressRenderer constructs a renderer writing to writer; colors follow the writer's terminal capabilities.
func NewProgressRenderer(writer io.Writer, width int) *ProgressRenderer {
	if width <= 0 {
		width = defaultProgressWidthConstant
	}
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(width),
		progress.WithColorProfile(termenv.NewOutput(writer).EnvColorProfile()),
	)
	return &ProgressRenderer{writer: writer, bar: bar, lastPercent: -1}
}

// Update redraws the bar for the cumulative copied bytes. Redraws are skipped until the bar
// advances by at least one percent or completes.
func (renderer *ProgressRenderer) Update(bytesCopied int64, totalBytes int64) {
	if renderer == nil || renderer.writer == nil {
		return
	}
	renderer.mutex.Lock()
	defer renderer.mutex.Unlock()

	percent := 1.0
	if totalBytes > 0 {
		percent = min(float64(bytesCopied)/float64(totalBytes), 1.0)
	}
	if renderer.rendered && percent < 1.0 && percent-renderer.lastPercent < progressPercentStepConstant {
		return
	}
	renderer.lastPercent = percent
	renderer.rendered = true
	fmt.Fprintf(
		renderer.writer,
		progressLineTemplateConstant,
		renderer.bar.ViewAs(percent),
		humanize.IBytes(uint64(max(bytesCopied, 0))),
		humanize.IBytes(uint64(max(totalBytes, 0))),
	)
}

// Finish terminates the progress line if anything was drawn.
func (renderer *ProgressRenderer) Finish() {
	if renderer == nil || renderer.writer == nil {
		return
	}
	renderer.mutex.Lock()
	defer renderer.mutex.Unlock()
	if renderer.rendered {
		_, _ = io.WriteString(renderer.writer, progressFinishedLineConstant)
		renderer.rendered = false
	}
}
