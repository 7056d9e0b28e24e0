package models

// ScoreBreakdown lists the contribution of each urgency factor.
type ScoreBreakdown struct {
	Severity int `json:"severity"`
	Duration int `json:"duration"`
	Progress int `json:"progress"`
	FollowUp int `json:"followUp"`
}

// Total sums the contributions.
func (b ScoreBreakdown) Total() int {
	return b.Severity + b.Duration + b.Progress + b.FollowUp
}
