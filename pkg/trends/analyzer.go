package trends

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/transit"
)

const (
	historicalDecay = 0.85
	fallbackSpeedKMH = 25.0

	fallbackConfidence = 30

	onTimeThresholdMinutes = 5.0
	defaultDelayProbability = 0.3
	neutralReliabilityScore = 70.0

	optimalSampleSize = 50
	varianceCeiling   = 100.0
)

const (
	MethodFallback           = "fallback_estimate"
	MethodHistoricalWeighted = "historical_weighted"
)

// TripRecordRepository is the persistence collaborator - the only part of the
// analyzer allowed to block on external storage
type TripRecordRepository interface {
	RecentTrips(ctx context.Context, routeID string, limit int) ([]transit.TripRecord, error)
}

type Conditions struct {
	Hour      int    `json:"hour"`
	DayOfWeek int    `json:"dayOfWeek"`
	Weather   string `json:"weather"`
}

type Prediction struct {
	PredictedMinutes float64 `json:"predictedMinutes"`
	Confidence       int     `json:"confidence"`
	Method           string  `json:"method"`

	SampleSize int `json:"sampleSize"`

	// Factors expose the adjustment inputs for explainability
	Factors PredictionFactors `json:"factors"`
}

type PredictionFactors struct {
	TimeSlot   float64 `json:"timeSlot"`
	DayOfWeek  float64 `json:"dayOfWeek"`
	Weather    float64 `json:"weather"`
	Adjustment float64 `json:"adjustment"`
}

type DelayEstimate struct {
	Probability           float64 `json:"probability"`
	ProbabilityPercentage float64 `json:"probabilityPercentage"`
	SampleSize            int     `json:"sampleSize"`
	Confidence            int     `json:"confidence"`
}

type Analyzer struct {
	Repository TripRecordRepository

	WindowSize   int
	QueryTimeout time.Duration
}

func NewAnalyzer(repository TripRecordRepository) *Analyzer {
	return &Analyzer{
		Repository: repository,

		WindowSize:   100,
		QueryTimeout: 5 * time.Second,
	}
}

// PredictETA estimates the travel duration for a route over a given distance.
// With no history available it produces a clearly low-confidence fallback
// estimate rather than an error.
func PredictETA(history []transit.TripRecord, distanceKM float64, conditions Conditions) Prediction {
	timeFactor := TimeSlotFactor(conditions.Hour)
	dayFactor := DayOfWeekFactor(conditions.DayOfWeek)
	weatherFactor := WeatherFactor(conditions.Weather)

	if len(history) == 0 {
		predicted := (distanceKM / fallbackSpeedKMH) * 60 * timeFactor * dayFactor

		return Prediction{
			PredictedMinutes: predicted,
			Confidence:       fallbackConfidence,
			Method:           MethodFallback,
			SampleSize:       0,
			Factors: PredictionFactors{
				TimeSlot:  timeFactor,
				DayOfWeek: dayFactor,
				Weather:   weatherFactor,
			},
		}
	}

	durations := make([]float64, len(history))
	historicalTimeFactors := make([]float64, len(history))
	historicalDayFactors := make([]float64, len(history))

	for i, record := range history {
		durations[i] = record.ActualDurationMinutes
		historicalTimeFactors[i] = TimeSlotFactor(record.HourOfDay)
		historicalDayFactors[i] = DayOfWeekFactor(record.DayOfWeek)
	}

	base := WeightedAverage(durations, historicalDecay)

	avgHistoricalTimeFactor := mean(historicalTimeFactors)
	avgHistoricalDayFactor := mean(historicalDayFactors)

	adjustment := (timeFactor / avgHistoricalTimeFactor) * (dayFactor / avgHistoricalDayFactor) * weatherFactor

	return Prediction{
		PredictedMinutes: base * adjustment,
		Confidence:       ConfidenceScore(len(history), variance(durations)),
		Method:           MethodHistoricalWeighted,
		SampleSize:       len(history),
		Factors: PredictionFactors{
			TimeSlot:   timeFactor,
			DayOfWeek:  dayFactor,
			Weather:    weatherFactor,
			Adjustment: adjustment,
		},
	}
}

// ConfidenceScore combines sample size (up to 60 points, linear to the optimal
// sample size) with variance (up to 40 points, decreasing as variance rises)
func ConfidenceScore(sampleSize int, durationVariance float64) int {
	sampleContribution := math.Min(float64(sampleSize)/optimalSampleSize, 1.0) * 60

	varianceContribution := math.Max(0, 1.0-durationVariance/varianceCeiling) * 40

	score := math.Round(sampleContribution + varianceContribution)

	return int(math.Max(0, math.Min(100, score)))
}

// DelayProbability is the fraction of historical trips whose delay exceeded the
// threshold. Empty history yields the default probability with zero confidence,
// an explicit "insufficient data" signal.
func DelayProbability(history []transit.TripRecord, thresholdMinutes float64) DelayEstimate {
	if len(history) == 0 {
		return DelayEstimate{
			Probability:           defaultDelayProbability,
			ProbabilityPercentage: defaultDelayProbability * 100,
			SampleSize:            0,
			Confidence:            0,
		}
	}

	delayed := 0
	for _, record := range history {
		if record.DelayMinutes > thresholdMinutes {
			delayed++
		}
	}

	probability := float64(delayed) / float64(len(history))

	delays := make([]float64, len(history))
	for i, record := range history {
		delays[i] = record.DelayMinutes
	}

	return DelayEstimate{
		Probability:           probability,
		ProbabilityPercentage: probability * 100,
		SampleSize:            len(history),
		Confidence:            ConfidenceScore(len(history), variance(delays)),
	}
}

// ReliabilityScore is a 0-100 heuristic combining the on-time fraction with an
// average-delay penalty. No history gives a neutral score, never zero.
func ReliabilityScore(history []transit.TripRecord) float64 {
	if len(history) == 0 {
		return neutralReliabilityScore
	}

	onTime := 0
	totalDelay := 0.0

	for _, record := range history {
		if math.Abs(record.DelayMinutes) <= onTimeThresholdMinutes {
			onTime++
		}
		totalDelay += record.DelayMinutes
	}

	averageDelay := totalDelay / float64(len(history))

	score := (float64(onTime)/float64(len(history)))*100 - math.Min(30, 2*averageDelay)

	return math.Max(0, math.Min(100, score))
}

// PredictRouteETA queries the trip window for the route and runs the estimator
// over it. Repository failures degrade to the fallback estimate.
func (a *Analyzer) PredictRouteETA(ctx context.Context, routeID string, distanceKM float64, conditions Conditions) Prediction {
	history := a.tripWindow(ctx, routeID)

	return PredictETA(history, distanceKM, conditions)
}

func (a *Analyzer) RouteDelayProbability(ctx context.Context, routeID string, thresholdMinutes float64) DelayEstimate {
	return DelayProbability(a.tripWindow(ctx, routeID), thresholdMinutes)
}

func (a *Analyzer) RouteReliabilityScore(ctx context.Context, routeID string) float64 {
	return ReliabilityScore(a.tripWindow(ctx, routeID))
}

func (a *Analyzer) tripWindow(ctx context.Context, routeID string) []transit.TripRecord {
	queryCtx, cancel := context.WithTimeout(ctx, a.QueryTimeout)
	defer cancel()

	history, err := a.Repository.RecentTrips(queryCtx, routeID, a.WindowSize)
	if err != nil {
		log.Error().Err(err).Str("route", routeID).Msg("Failed to query trip records")
		return nil
	}

	return history
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, value := range values {
		sum += value
	}

	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	avg := mean(values)

	sum := 0.0
	for _, value := range values {
		sum += (value - avg) * (value - avg)
	}

	return sum / float64(len(values))
}
