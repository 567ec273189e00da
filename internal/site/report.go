package site

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// BuildReport captures high-level metrics about a site generation run.
type BuildReport struct {
	BuildID        string                      `json:"build_id"`
	Start          time.Time                   `json:"start"`
	Duration       time.Duration               `json:"-"`
	DurationMS     int64                       `json:"duration_ms"`
	Posts          int                         `json:"posts"`
	Pages          int                         `json:"pages"`
	RenderedPages  int                         `json:"rendered_pages"`
	StageDurations map[StageName]time.Duration `json:"-"`
	Outcome        BuildOutcome                `json:"outcome"`
	Warnings       []string                    `json:"warnings,omitempty"`
	Errors         []string                    `json:"errors,omitempty"`
}

func newBuildReport(buildID string) *BuildReport {
	return &BuildReport{
		BuildID:        buildID,
		Start:          time.Now().UTC(),
		StageDurations: make(map[StageName]time.Duration),
		Outcome:        OutcomeSuccess,
	}
}

func (r *BuildReport) recordError(se *StageError) {
	r.Errors = append(r.Errors, se.Error())
	if se.Kind == StageErrorCanceled {
		r.Outcome = OutcomeCanceled
	} else {
		r.Outcome = OutcomeFailed
	}
}

func (r *BuildReport) recordWarning(se *StageError) {
	r.Warnings = append(r.Warnings, se.Error())
	if r.Outcome == OutcomeSuccess {
		r.Outcome = OutcomeWarning
	}
}

func (r *BuildReport) finish(d time.Duration) {
	r.Duration = d
	r.DurationMS = d.Milliseconds()
}

// write serializes the report as pretty JSON into dir/build-report.json.
func (r *BuildReport) write(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal build report: %w", err)
	}
	path := filepath.Join(dir, "build-report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write build report: %w", err)
	}
	return nil
}
