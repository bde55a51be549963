// Copyright 2025 James Ross

// Package quality implements the Quality Scorer from spec §4.5: given a
// Provider Record, compute completeness/accuracy/freshness/reliability
// sub-scores, an overall weighted grade, and recommendations. The
// Confidence/Rationale-bearing recommendation shape is grounded on the
// teacher's internal/smart-retry-strategies RetryRecommendation (a
// scored-with-rationale struct), narrowed from an ML model's output to
// plain threshold-driven heuristics since nothing in this domain trains
// a model.
package quality

import (
	"math"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
)

// Grade is the human-facing bucket an overall score maps to.
type Grade string

const (
	GradeExcellent    Grade = "excellent"
	GradeGood         Grade = "good"
	GradeAcceptable   Grade = "acceptable"
	GradePoor         Grade = "poor"
	GradeInsufficient Grade = "insufficient"
)

// Weights are the default sub-score weights from spec §4.5.
type Weights struct {
	Completeness float64
	Accuracy     float64
	Freshness    float64
	Reliability  float64
}

// DefaultWeights matches spec §4.5 exactly.
var DefaultWeights = Weights{Completeness: 0.4, Accuracy: 0.3, Freshness: 0.2, Reliability: 0.1}

// FieldImportance is the default per-field importance table from spec
// §4.5, used by the completeness sub-score.
var FieldImportance = map[string]float64{
	"title":          1.0,
	"airDate":        1.0,
	"season":         1.0,
	"episode":        1.0,
	"synopsis":       0.9,
	"writers":        0.8,
	"directors":      0.8,
	"plotPoints":     0.8,
	"productionCode": 0.65,
	"guestStars":     0.65,
	"tmdbId":         0.6,
	"imdbId":         0.6,
	"memoryAlphaUrl": 0.55,
	"connections":    0.55,
}

// FreshnessParams configures the exponential decay curve.
type FreshnessParams struct {
	HalfLifeDays float64
	FloorScore   float64
}

// DefaultFreshnessParams matches spec §4.5 defaults.
var DefaultFreshnessParams = FreshnessParams{HalfLifeDays: 30, FloorScore: 0.1}

// Reliability is a provider's declared track record (spec §6): uptime,
// accuracy, and latency, used by the Source Reliability sub-score.
type Reliability struct {
	Uptime        float64
	Accuracy      float64
	LatencyMillis float64
}

// SourceProfile is the subset of a provider's declared attributes the
// scorer needs: its baseline confidence and reliability.
type SourceProfile struct {
	ConfidenceLevel     float64
	Reliability         Reliability
	ObservedSuccessRate *float64
}

// Score is the full set of sub-scores plus overall and grade.
type Score struct {
	Completeness    float64
	Accuracy        float64
	Freshness       float64
	Reliability     float64
	Overall         float64
	Grade           Grade
	Recommendations []string
}

// Scorer computes Quality Scores using a fixed weight/importance/decay
// configuration, overridable from defaults for testing or tuning.
type Scorer struct {
	Weights         Weights
	FieldImportance map[string]float64
	Freshness       FreshnessParams
	now             func() time.Time
}

// New returns a Scorer configured with spec §4.5's defaults.
func New() *Scorer {
	return &Scorer{
		Weights:         DefaultWeights,
		FieldImportance: FieldImportance,
		Freshness:       DefaultFreshnessParams,
		now:             time.Now,
	}
}

// Completeness computes Σ importance[present] / Σ importance[field].
func (s *Scorer) Completeness(r episode.ProviderRecord) float64 {
	var have, total float64
	for field, weight := range s.FieldImportance {
		total += weight
		if r.Present(field) {
			have += weight
		}
	}
	if total == 0 {
		return 0
	}
	return have / total
}

// Accuracy is the mean of the record's stored confidence, its
// field-validation pass rate, and (if available) the provider's
// observed historical accuracy rate.
func (s *Scorer) Accuracy(r episode.ProviderRecord, profile SourceProfile) float64 {
	samples := []float64{profile.ConfidenceLevel, validationPassRate(r)}
	if profile.ObservedSuccessRate != nil {
		samples = append(samples, *profile.ObservedSuccessRate)
	}
	return mean(samples)
}

func validationPassRate(r episode.ProviderRecord) float64 {
	if len(r.Validations) == 0 {
		return 1 // nothing validated yet is neither a pass nor a fail; don't penalize
	}
	passed := 0
	for _, v := range r.Validations {
		if v.IsValid {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Validations))
}

// Freshness applies exponential decay based on record age, floored at
// FreshnessParams.FloorScore.
func (s *Scorer) Freshness(r episode.ProviderRecord) float64 {
	ageDays := s.now().Sub(r.FetchedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	decay := math.Pow(0.5, ageDays/s.Freshness.HalfLifeDays)
	if decay < s.Freshness.FloorScore {
		return s.Freshness.FloorScore
	}
	return decay
}

// Reliability is the mean of the source's declared confidence, uptime,
// accuracy, and observed success rate where available.
func (s *Scorer) Reliability(profile SourceProfile) float64 {
	samples := []float64{profile.ConfidenceLevel, profile.Reliability.Uptime, profile.Reliability.Accuracy}
	if profile.ObservedSuccessRate != nil {
		samples = append(samples, *profile.ObservedSuccessRate)
	}
	return mean(samples)
}

// Evaluate computes the full Score for r from profile.
func (s *Scorer) Evaluate(r episode.ProviderRecord, profile SourceProfile) Score {
	completeness := s.Completeness(r)
	accuracy := s.Accuracy(r, profile)
	freshness := s.Freshness(r)
	reliability := s.Reliability(profile)

	overall := s.Weights.Completeness*completeness +
		s.Weights.Accuracy*accuracy +
		s.Weights.Freshness*freshness +
		s.Weights.Reliability*reliability

	score := Score{
		Completeness: completeness,
		Accuracy:     accuracy,
		Freshness:    freshness,
		Reliability:  reliability,
		Overall:      overall,
		Grade:        gradeFor(overall),
	}
	score.Recommendations = recommendationsFor(score)
	return score
}

func gradeFor(overall float64) Grade {
	switch {
	case overall >= 0.9:
		return GradeExcellent
	case overall >= 0.75:
		return GradeGood
	case overall >= 0.6:
		return GradeAcceptable
	case overall >= 0.4:
		return GradePoor
	default:
		return GradeInsufficient
	}
}

func recommendationsFor(s Score) []string {
	var recs []string
	if s.Completeness < 0.6 {
		recs = append(recs, "record is missing several high-importance fields; consider enriching from an additional provider")
	}
	if s.Accuracy < 0.6 {
		recs = append(recs, "field validations or provider confidence are low; re-validate before treating this record as authoritative")
	}
	if s.Freshness < 0.4 {
		recs = append(recs, "record is stale; schedule a refresh job")
	}
	if s.Reliability < 0.5 {
		recs = append(recs, "source reliability is low; prefer a higher-priority provider if one is available")
	}
	return recs
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
