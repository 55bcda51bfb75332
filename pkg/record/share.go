package record

import (
	"fmt"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
)

const (
	// DefaultNickname is used on share cards when the user has not set one.
	DefaultNickname = "부지런한햇살"
	defaultFeedback = "오늘도 상쾌한 아침!"
)

// ShareCard is the summary posted to the community board.
type ShareCard struct {
	Nickname        string `json:"nickname"`
	Feedback        string `json:"feedback"`
	RoutineProgress string `json:"routine_progress"`
	Date            string `json:"date"`
	Score           int    `json:"score"`
}

// NewShareCard builds a card for date. A nil result yields a zero score and
// the default greeting.
func NewShareCard(nickname string, result analysis.Result, completed, total int, date string) ShareCard {
	if nickname == "" {
		nickname = DefaultNickname
	}
	card := ShareCard{
		Nickname:        nickname,
		Feedback:        defaultFeedback,
		RoutineProgress: fmt.Sprintf("오늘 루틴 %d/%d 완료", completed, total),
		Date:            date,
	}
	if result != nil {
		base := result.Base()
		card.Score = base.Score
		if base.Feedback != "" {
			card.Feedback = base.Feedback
		}
	}
	return card
}
