package service

import (
	"math"
	"time"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

const (
	maxDurationPoints = 4
	followUpPoints    = 2
	week              = 7 * 24 * time.Hour
)

var severityPoints = map[models.Severity]int{
	models.SeverityLow:      1,
	models.SeverityMedium:   2,
	models.SeverityHigh:     3,
	models.SeverityCritical: 4,
}

// ScoreInput is the case-like record the scoring engine consumes.
type ScoreInput struct {
	Severity           models.Severity
	StartDate          time.Time
	EndDate            *time.Time
	ProgressPercentage float64
	RequiresFollowUp   bool
}

// ScoreInputFromIntervention adapts a stored case: the case starts on
// dateReported and ends on dateResolved when set.
func ScoreInputFromIntervention(in models.Intervention) ScoreInput {
	input := ScoreInput{
		Severity:           in.Severity,
		StartDate:          in.DateReported.Time,
		ProgressPercentage: in.ProgressPercentage,
		RequiresFollowUp:   in.RequiresFollowUp,
	}
	if in.DateResolved != nil && !in.DateResolved.IsZero() {
		end := in.DateResolved.Time
		input.EndDate = &end
	}
	return input
}

// ScoringEngine computes urgency scores against an injectable clock.
type ScoringEngine struct {
	now func() time.Time
}

// NewScoringEngine builds an engine. A nil clock uses time.Now.
func NewScoringEngine(now func() time.Time) *ScoringEngine {
	if now == nil {
		now = time.Now
	}
	return &ScoringEngine{now: now}
}

// Score evaluates in against the engine clock.
func (e *ScoringEngine) Score(in ScoreInput) models.ScoreBreakdown {
	return ScoreAt(in, e.now())
}

// ScoreIntervention scores a stored case.
func (e *ScoringEngine) ScoreIntervention(in models.Intervention) models.ScoreBreakdown {
	return e.Score(ScoreInputFromIntervention(in))
}

// Now exposes the engine clock.
func (e *ScoringEngine) Now() time.Time {
	return e.now()
}

// ScoreAt is the pure scoring function. Unknown severities contribute 0.
func ScoreAt(in ScoreInput, now time.Time) models.ScoreBreakdown {
	end := now
	if in.EndDate != nil {
		end = *in.EndDate
	}
	return models.ScoreBreakdown{
		Severity: severityPoints[in.Severity],
		Duration: durationPoints(in.StartDate, end),
		Progress: progressPoints(in.ProgressPercentage),
		FollowUp: followUpContribution(in.RequiresFollowUp),
	}
}

func durationPoints(start, end time.Time) int {
	elapsed := end.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	weeks := int(elapsed / week)
	if weeks > maxDurationPoints {
		return maxDurationPoints
	}
	return weeks
}

func progressPoints(progress float64) int {
	if math.IsNaN(progress) {
		progress = 0
	}
	progress = math.Max(0, math.Min(100, progress))
	return int(math.Floor((100 - progress) / 25))
}

func followUpContribution(required bool) int {
	if required {
		return followUpPoints
	}
	return 0
}
