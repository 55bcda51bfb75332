// Package session implements the daily routine flow as a finite state machine.
package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
	"github.com/codeGROOVE-dev/morningglow/pkg/record"
)

// Phase is the current screen of the daily flow.
type Phase int

// Phases in flow order.
const (
	Home Phase = iota
	Capturing
	Analyzing
	RoutineCheck
	Summary
)

func (p Phase) String() string {
	switch p {
	case Home:
		return "home"
	case Capturing:
		return "capturing"
	case Analyzing:
		return "analyzing"
	case RoutineCheck:
		return "routine_check"
	case Summary:
		return "summary"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var (
	// ErrBusy rejects input while an analysis is in flight.
	ErrBusy = errors.New("analysis in progress")
	// ErrNoImage rejects a submit without a captured image.
	ErrNoImage = errors.New("no image captured")
	// ErrNotConfirmed rejects a full reset without confirmation.
	ErrNotConfirmed = errors.New("full reset requires confirmation")
	// ErrUnknownRoutine rejects toggling an ID outside the catalog.
	ErrUnknownRoutine = errors.New("unknown routine")
)

// TransitionError reports an event that is not valid in the current phase.
type TransitionError struct {
	Event string
	Phase Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed in %s", e.Event, e.Phase)
}

// State is the whole session. History and Streak are working copies of the
// stored values; the Machine writes them back when a phase completes.
type State struct {
	Result    analysis.Result
	Image     string
	Day       string
	Notice    string
	Completed []string
	History   record.History
	Streak    int
	Phase     Phase
}

// IsCompleted reports whether routine id is checked.
func (s State) IsCompleted(id string) bool {
	return slices.Contains(s.Completed, id)
}

// TodayRecord returns the record for the session's day.
func (s State) TodayRecord() (record.DailyRecord, bool) {
	if s.Day == "" {
		return record.DailyRecord{}, false
	}
	return s.History.Find(s.Day)
}
