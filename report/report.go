// Package report formats the outcome of a benchmark run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// RunReport aggregates one benchmark run.
type RunReport struct {
	Mode            string        `json:"mode"`
	Workers         int           `json:"workers"`
	Tasks           int           `json:"tasks"`
	TotalOperations int64         `json:"total_operations"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// QPS returns TotalOperations / Elapsed in seconds, or zero when no
// time elapsed.
func (r RunReport) QPS() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}

	return float64(r.TotalOperations) / secs
}

// Emit writes the single qps line for r.
func Emit(w io.Writer, r RunReport) error {
	_, err := fmt.Fprintf(w, "qps: %v\n", r.QPS())

	return err
}

// Summary writes a human-readable breakdown of r.
func Summary(w io.Writer, r RunReport) error {
	label := color.New(color.Bold)
	value := color.New(color.FgGreen, color.Bold)

	rows := []struct {
		name string
		val  string
	}{
		{"mode", r.Mode},
		{"workers", fmt.Sprintf("%d", r.Workers)},
		{"tasks", fmt.Sprintf("%d", r.Tasks)},
		{"operations", fmt.Sprintf("%d", r.TotalOperations)},
		{"elapsed", formatElapsed(r.Elapsed)},
		{"qps", fmt.Sprintf("%.2f", r.QPS())},
	}

	for _, row := range rows {
		if _, err := label.Fprintf(w, "%-11s", row.name); err != nil {
			return err
		}
		if _, err := value.Fprintln(w, row.val); err != nil {
			return err
		}
	}

	return nil
}

type jsonReport struct {
	RunReport
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	QPS            float64 `json:"qps"`
}

// GenerateJSON writes r as JSON to w.
func GenerateJSON(w io.Writer, r RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jsonReport{
		RunReport:      r,
		ElapsedSeconds: r.Elapsed.Seconds(),
		QPS:            r.QPS(),
	})
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return fmt.Sprintf("%.2fs", d.Seconds())
}
