package session

import (
	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
	"github.com/codeGROOVE-dev/morningglow/pkg/record"
)

// Event is an input to Step.
type Event interface {
	Name() string
}

// StartDay opens today's flow from Home.
type StartDay struct{ Today string }

// SelectImage captures a new photo.
type SelectImage struct{ Image string }

// ClearImage drops the captured photo.
type ClearImage struct{}

// Submit sends the captured photo for analysis.
type Submit struct{}

// AnalysisSucceeded delivers the analysis result.
type AnalysisSucceeded struct{ Result analysis.Result }

// AnalysisFailed reports that no result could be obtained.
type AnalysisFailed struct{ Err error }

// Toggle flips one routine in the completed set.
type Toggle struct {
	Catalog record.Catalog
	ID      string
}

// Finish records the day.
type Finish struct {
	Catalog record.Catalog
	Today   string
}

// ReturnHome leaves the current flow.
type ReturnHome struct{}

// ResetToday deletes today's record.
type ResetToday struct{ Today string }

// ResetAll deletes all stored state.
type ResetAll struct{ Confirmed bool }

func (StartDay) Name() string          { return "start_day" }
func (SelectImage) Name() string       { return "select_image" }
func (ClearImage) Name() string        { return "clear_image" }
func (Submit) Name() string            { return "submit" }
func (AnalysisSucceeded) Name() string { return "analysis_succeeded" }
func (AnalysisFailed) Name() string    { return "analysis_failed" }
func (Toggle) Name() string            { return "toggle" }
func (Finish) Name() string            { return "finish" }
func (ReturnHome) Name() string        { return "return_home" }
func (ResetToday) Name() string        { return "reset_today" }
func (ResetAll) Name() string          { return "reset_all" }
