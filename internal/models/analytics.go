package models

// QuestionStats aggregates the answer log of one question.
type QuestionStats struct {
	QuestionID string
	Text       string
	Active     bool
	Yes        int
	No         int
	Successes  int
}

func (q QuestionStats) Answers() int {
	return q.Yes + q.No
}

// SuccessRate is the share of SUCCESS outcomes in percent, or 0 without answers.
func (q QuestionStats) SuccessRate() float64 {
	if q.Answers() == 0 {
		return 0
	}
	return float64(q.Successes) * 100 / float64(q.Answers()) //nolint:mnd // percent
}

// Analytics is the admin overview computed from recorded answers and leaderboard records.
type Analytics struct {
	TotalPlayers  int
	GamesStarted  int
	GamesFinished int
	AverageScore  float64
	TotalAnswers  int
	SuccessRate   float64
	Questions     []QuestionStats
}
