package ingest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ResourceReport summarizes one dataset fetch.
type ResourceReport struct {
	ResourceID    string    `json:"resource_id"`
	TotalReported int       `json:"total_reported"`
	Fetched       int       `json:"fetched"`
	Written       int       `json:"written"`
	FirstOffset   int       `json:"first_offset"`
	LastOffset    int       `json:"last_offset"`
	Retries       int       `json:"retries"`
	Shrinks       int       `json:"shrinks"`
	Errors        []string  `json:"errors,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Failed reports whether the resource fetch ended with a terminal error.
func (r *ResourceReport) Failed() bool {
	return len(r.Errors) > 0
}

// Report covers one fetch run across a collection's datasets.
type Report struct {
	CollectionID string            `json:"collection_id"`
	Resources    []*ResourceReport `json:"resources"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// TotalFetched sums fetched records across all resources.
func (r *Report) TotalFetched() int {
	var n int
	for _, res := range r.Resources {
		n += res.Fetched
	}
	return n
}

// TotalWritten sums written records across all resources.
func (r *Report) TotalWritten() int {
	var n int
	for _, res := range r.Resources {
		n += res.Written
	}
	return n
}

// Markdown renders the run summary as a table plus an error appendix.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Fetch Report\n\n")
	fmt.Fprintf(&b, "Collection: `%s`\n\n", r.CollectionID)
	fmt.Fprintf(&b, "Started: %s\nFinished: %s\n\n",
		r.StartedAt.Format(time.RFC3339), r.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "| Resource | Total | Fetched | Written | Retries | Shrinks | Status |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|\n")
	for _, res := range r.Resources {
		status := "ok"
		if res.Failed() {
			status = "failed"
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d | %s |\n",
			res.ResourceID, res.TotalReported, res.Fetched, res.Written,
			res.Retries, res.Shrinks, status)
	}

	var hasErrors bool
	for _, res := range r.Resources {
		for _, e := range res.Errors {
			if !hasErrors {
				fmt.Fprintf(&b, "\n## Errors\n\n")
				hasErrors = true
			}
			fmt.Fprintf(&b, "- `%s`: %s\n", res.ResourceID, e)
		}
	}
	return b.String()
}

// WriteMarkdown writes the rendered report to path.
func (r *Report) WriteMarkdown(path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write report %s", path)
	}
	return nil
}
