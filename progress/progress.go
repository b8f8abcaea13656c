// Package progress renders a terminal progress bar for long inserts.
package progress

import (
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
)

const template = `{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// Bar wraps a pb progress bar.
type Bar struct {
	bar *pb.ProgressBar
}

// New creates and starts a bar counting to total, drawn on w.
func New(w io.Writer, total int64, caption string) *Bar {
	bar := pb.New64(total)
	bar.SetWriter(w)
	bar.SetRefreshRate(125 * time.Millisecond)
	bar.SetTemplateString(template)
	bar.Set("prefix", caption)
	bar.Start()

	return &Bar{bar: bar}
}

// Increment advances the bar by one.
func (b *Bar) Increment() {
	b.bar.Increment()
}

// Finish stops refreshing and draws the final state.
func (b *Bar) Finish() {
	b.bar.Finish()
}
