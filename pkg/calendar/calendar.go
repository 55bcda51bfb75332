// Package calendar projects history into a month grid and renders it.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/morningglow/pkg/record"
)

// Tier is the score band of a day.
type Tier int

// Score tiers. TierNone marks a day without a record.
const (
	TierNone Tier = iota
	TierLow
	TierMid
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMid:
		return "mid"
	case TierHigh:
		return "high"
	default:
		return "none"
	}
}

// TierFor maps a bed score to its tier.
func TierFor(score int) Tier {
	switch {
	case score >= 80:
		return TierHigh
	case score >= 50:
		return TierMid
	default:
		return TierLow
	}
}

// GoodScore is the threshold for the secondary "good day" dot.
const GoodScore = 60

// Cell is one day of the month.
type Cell struct {
	Record  *record.DailyRecord
	Date    string
	Day     int
	Tier    Tier
	Perfect bool
	Good    bool
}

// Grid is a month laid out Sunday first.
type Grid struct {
	Cells   []Cell
	Year    int
	Month   time.Month
	Leading int // blank cells before the 1st
}

// Month builds the grid for year/month.
func Month(h record.History, year int, month time.Month) Grid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	g := Grid{
		Year:    year,
		Month:   month,
		Leading: int(first.Weekday()),
		Cells:   make([]Cell, 0, days),
	}
	for day := 1; day <= days; day++ {
		date := record.Today(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
		c := Cell{Day: day, Date: date}
		if rec, ok := h.Find(date); ok {
			c.Record = &rec
			c.Tier = TierFor(rec.BedScore)
			c.Perfect = rec.Perfect()
			c.Good = rec.BedScore >= GoodScore
		}
		g.Cells = append(g.Cells, c)
	}
	return g
}

// Current builds the grid for the month containing now.
func Current(h record.History, now time.Time) Grid {
	return Month(h, now.Year(), now.Month())
}

var (
	tierColors = map[Tier]*color.Color{
		TierNone: color.New(color.FgHiBlack),
		TierLow:  color.New(color.FgRed),
		TierMid:  color.New(color.FgYellow),
		TierHigh: color.New(color.FgGreen),
	}
	todayColor   = color.New(color.Bold, color.Underline)
	perfectColor = color.New(color.FgHiYellow)
	goodColor    = color.New(color.FgCyan)
)

// Render draws the grid as text. Day numbers are colored by tier, a star marks
// a routine-perfect day and a dot a good score. today is highlighted.
func Render(g Grid, today string) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("📅 %d년 %d월\n", g.Year, int(g.Month)))
	output.WriteString(strings.Repeat("─", 28) + "\n")
	output.WriteString(" 일  월  화  수  목  금  토\n")

	col := 0
	for range g.Leading {
		output.WriteString("    ")
		col++
	}
	for _, c := range g.Cells {
		day := tierColors[c.Tier].Sprintf("%3d", c.Day)
		if c.Date == today {
			day = todayColor.Sprintf("%3d", c.Day)
		}
		mark := " "
		switch {
		case c.Perfect:
			mark = perfectColor.Sprint("*")
		case c.Good:
			mark = goodColor.Sprint(".")
		}
		output.WriteString(day + mark)
		col++
		if col == 7 {
			output.WriteString("\n")
			col = 0
		}
	}
	if col != 0 {
		output.WriteString("\n")
	}

	output.WriteString(strings.Repeat("─", 28) + "\n")
	output.WriteString(fmt.Sprintf("%s 80+  %s 50-79  %s <50  * 루틴 완료  . 60+\n",
		tierColors[TierHigh].Sprint("■"),
		tierColors[TierMid].Sprint("■"),
		tierColors[TierLow].Sprint("■")))
	return output.String()
}
