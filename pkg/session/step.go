package session

import (
	"slices"
	"strings"

	"github.com/codeGROOVE-dev/morningglow/pkg/record"
)

// FailureNotice is shown when an analysis attempt fails.
const FailureNotice = "이미지 분석에 실패했습니다. 다시 시도해주세요."

// Step applies e to s. It never mutates s; on error the returned state is s.
func Step(s State, e Event) (State, error) {
	next := s
	next.Notice = ""

	switch ev := e.(type) {
	case StartDay:
		if s.Phase != Home {
			break
		}
		next.Day = ev.Today
		if rec, ok := s.History.Find(ev.Today); ok {
			next.Phase = Summary
			if next.Result == nil {
				next.Result = rec.Result()
				next.Completed = slices.Clone(rec.CompletedRoutines)
			}
			return next, nil
		}
		// A cached result without a record means the app stopped mid-routine.
		if s.Result != nil {
			next.Phase = RoutineCheck
			return next, nil
		}
		next.Phase = Capturing
		return next, nil

	case SelectImage:
		if s.Phase == Analyzing {
			return s, ErrBusy
		}
		if s.Phase != Capturing {
			break
		}
		if strings.TrimSpace(ev.Image) == "" {
			return s, ErrNoImage
		}
		next.Image = ev.Image
		next.Result = nil
		next.Completed = nil
		return next, nil

	case ClearImage:
		if s.Phase == Analyzing {
			return s, ErrBusy
		}
		if s.Phase != Capturing {
			break
		}
		next.Image = ""
		return next, nil

	case Submit:
		if s.Phase == Analyzing {
			return s, ErrBusy
		}
		if s.Phase != Capturing {
			break
		}
		if s.Image == "" {
			return s, ErrNoImage
		}
		next.Phase = Analyzing
		return next, nil

	case AnalysisSucceeded:
		if s.Phase != Analyzing {
			break
		}
		if ev.Result == nil {
			return Step(s, AnalysisFailed{})
		}
		next.Phase = RoutineCheck
		next.Result = ev.Result
		next.Completed = []string{}
		return next, nil

	case AnalysisFailed:
		if s.Phase != Analyzing {
			break
		}
		next.Phase = Capturing
		next.Notice = FailureNotice
		return next, nil

	case Toggle:
		if s.Phase != RoutineCheck {
			break
		}
		if _, ok := ev.Catalog.Lookup(ev.ID); !ok {
			return s, ErrUnknownRoutine
		}
		if i := slices.Index(s.Completed, ev.ID); i >= 0 {
			next.Completed = slices.Delete(slices.Clone(s.Completed), i, i+1)
		} else {
			next.Completed = append(slices.Clone(s.Completed), ev.ID)
		}
		return next, nil

	case Finish:
		// Finishing again from Summary re-records the same day.
		if (s.Phase != RoutineCheck && s.Phase != Summary) || s.Result == nil {
			break
		}
		rec := record.NewDailyRecord(ev.Today, s.Result, s.Completed, ev.Catalog.Len())
		next.Streak = record.NextStreak(s.History, s.Streak, ev.Today)
		next.History = s.History.Upsert(rec)
		next.Image = ""
		next.Day = ev.Today
		next.Phase = Summary
		return next, nil

	case ReturnHome:
		switch s.Phase {
		case Capturing, RoutineCheck, Summary:
			next.Phase = Home
			next.Image = ""
			next.Result = nil
			next.Completed = nil
			return next, nil
		case Analyzing:
			return s, ErrBusy
		}

	case ResetToday:
		if s.Phase != Home {
			break
		}
		next.History = s.History.Remove(ev.Today)
		next.Image = ""
		next.Result = nil
		next.Completed = nil
		return next, nil

	case ResetAll:
		if s.Phase != Home {
			break
		}
		if !ev.Confirmed {
			return s, ErrNotConfirmed
		}
		return State{Phase: Home, History: record.History{}}, nil
	}

	name := "<nil>"
	if e != nil {
		name = e.Name()
	}
	return s, &TransitionError{Phase: s.Phase, Event: name}
}
