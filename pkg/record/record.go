// Package record holds daily records, the routine catalog and streak rules.
package record

import (
	"slices"
	"sort"
	"time"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
)

// DateLayout is the calendar date format used as the History key.
const DateLayout = "2006-01-02"

// DailyRecord is one finished day.
type DailyRecord struct {
	Neatness          *int     `json:"neatness,omitempty"`
	Corners           *int     `json:"corners,omitempty"`
	Pillows           *int     `json:"pillows,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	Date              string   `json:"date"`
	BedFeedback       string   `json:"bedFeedback"`
	CompletedRoutines []string `json:"completedRoutines"`
	BedScore          int      `json:"bedScore"`
	TotalRoutines     int      `json:"totalRoutines"`
}

// NewDailyRecord builds the record for date from an analysis result and the
// completed routine IDs.
func NewDailyRecord(date string, result analysis.Result, completed []string, total int) DailyRecord {
	base := result.Base()
	rec := DailyRecord{
		Date:              date,
		BedScore:          base.Score,
		BedFeedback:       base.Feedback,
		CompletedRoutines: slices.Clone(completed),
		TotalRoutines:     total,
	}
	if rec.CompletedRoutines == nil {
		rec.CompletedRoutines = []string{}
	}
	if d, ok := analysis.AsDetailed(result); ok {
		p := d.Payload()
		rec.Neatness, rec.Corners, rec.Pillows, rec.Confidence = p.Neatness, p.Corners, p.Pillows, p.Confidence
	}
	return rec
}

// Perfect reports whether every routine of a non-empty catalog was completed.
func (r DailyRecord) Perfect() bool {
	return r.TotalRoutines > 0 && len(r.CompletedRoutines) == r.TotalRoutines
}

// Result reconstructs the analysis result stored in the record.
func (r DailyRecord) Result() analysis.Result {
	return analysis.Payload{
		Neatness:   r.Neatness,
		Corners:    r.Corners,
		Pillows:    r.Pillows,
		Confidence: r.Confidence,
		Score:      r.BedScore,
		Feedback:   r.BedFeedback,
	}.Result()
}

// History is ordered ascending by date with at most one record per date.
type History []DailyRecord

// Upsert returns a copy of h with rec replacing any record of the same date.
func (h History) Upsert(rec DailyRecord) History {
	out := make(History, 0, len(h)+1)
	for _, r := range h {
		if r.Date != rec.Date {
			out = append(out, r)
		}
	}
	out = append(out, rec)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Remove returns a copy of h without the record for date.
func (h History) Remove(date string) History {
	out := make(History, 0, len(h))
	for _, r := range h {
		if r.Date != date {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the record for date.
func (h History) Find(date string) (DailyRecord, bool) {
	for _, r := range h {
		if r.Date == date {
			return r, true
		}
	}
	return DailyRecord{}, false
}

// Last returns the chronologically latest record.
func (h History) Last() (DailyRecord, bool) {
	if len(h) == 0 {
		return DailyRecord{}, false
	}
	return h[len(h)-1], true
}

// Today formats t as a calendar date in t's location.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns the whole-day distance between two calendar dates,
// rounded up and always non-negative.
func DaysBetween(a, b string) (int, error) {
	ta, err := time.Parse(DateLayout, a)
	if err != nil {
		return 0, err
	}
	tb, err := time.Parse(DateLayout, b)
	if err != nil {
		return 0, err
	}
	diff := tb.Sub(ta)
	if diff < 0 {
		diff = -diff
	}
	const day = 24 * time.Hour
	days := int(diff / day)
	if diff%day != 0 {
		days++
	}
	return days, nil
}

// NextStreak computes the streak after finishing today, given the history
// before the write.
func NextStreak(h History, streak int, today string) int {
	last, ok := h.Last()
	if !ok {
		return 1
	}
	diff, err := DaysBetween(last.Date, today)
	if err != nil {
		return 1
	}
	switch diff {
	case 0:
		return streak
	case 1:
		return streak + 1
	default:
		return 1
	}
}
