package trends_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridepulse/ridepulse/pkg/trends"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"github.com/stretchr/testify/require"
)

func tripRecord(actual float64, expected float64, hour int, day int) transit.TripRecord {
	return transit.NewTripRecord("1:ROUTE:42", time.Date(2025, 3, 1, hour, 0, 0, 0, time.UTC).AddDate(0, 0, day), actual, expected, "clear", 2, 10)
}

func flatHistory(n int, actual float64, expected float64) []transit.TripRecord {
	history := make([]transit.TripRecord, n)
	for i := range history {
		history[i] = tripRecord(actual, expected, 14, i%7)
	}
	return history
}

func TestTimeSlotFactor(t *testing.T) {
	require.Equal(t, 1.5, trends.TimeSlotFactor(8))
	require.Equal(t, 1.5, trends.TimeSlotFactor(18))
	require.Equal(t, 1.4, trends.TimeSlotFactor(7))
	require.Equal(t, 1.4, trends.TimeSlotFactor(20))
	require.Equal(t, 1.2, trends.TimeSlotFactor(13))
	require.Equal(t, 0.8, trends.TimeSlotFactor(23))
	require.Equal(t, 0.8, trends.TimeSlotFactor(3))
	require.Equal(t, 1.0, trends.TimeSlotFactor(6))
	require.Equal(t, 1.0, trends.TimeSlotFactor(21))
}

func TestDayOfWeekFactor(t *testing.T) {
	require.Equal(t, 0.7, trends.DayOfWeekFactor(0)) // Sunday lightest
	require.Equal(t, 1.3, trends.DayOfWeekFactor(5)) // Friday heaviest
	require.Equal(t, 1.0, trends.DayOfWeekFactor(-1))
	require.Equal(t, 1.0, trends.DayOfWeekFactor(7))
}

func TestWeatherFactor(t *testing.T) {
	require.Equal(t, 1.0, trends.WeatherFactor("clear"))
	require.Equal(t, 1.2, trends.WeatherFactor("rain"))
	require.Equal(t, 1.4, trends.WeatherFactor("heavy_rain"))
	require.Equal(t, 1.3, trends.WeatherFactor("fog"))
	require.Equal(t, 1.05, trends.WeatherFactor("asteroids"))
}

func TestWeightedAverage(t *testing.T) {
	require.Zero(t, trends.WeightedAverage(nil, 0.9))
	require.Equal(t, 10.0, trends.WeightedAverage([]float64{10}, 0.9))

	// Most recent value dominates: (20 + 0.9*10) / 1.9
	require.InDelta(t, 15.263, trends.WeightedAverage([]float64{20, 10}, 0.9), 0.001)

	// Uniform values are unaffected by weighting
	require.InDelta(t, 7.0, trends.WeightedAverage([]float64{7, 7, 7, 7}, 0.5), 1e-9)
}

func TestPredictETAFallback(t *testing.T) {
	prediction := trends.PredictETA(nil, 10, trends.Conditions{Hour: 14, DayOfWeek: 3, Weather: "unknown"})

	require.Equal(t, trends.MethodFallback, prediction.Method)
	require.Equal(t, 30, prediction.Confidence)
	require.Zero(t, prediction.SampleSize)

	// 10km at 25km/h is 24 minutes, x1.2 midday x1.0 Wednesday
	require.InDelta(t, 28.8, prediction.PredictedMinutes, 0.001)
}

func TestPredictETAHistoricalWeighted(t *testing.T) {
	history := flatHistory(50, 30, 30)

	prediction := trends.PredictETA(history, 10, trends.Conditions{Hour: 14, DayOfWeek: 3, Weather: "clear"})

	require.Equal(t, trends.MethodHistoricalWeighted, prediction.Method)
	require.Equal(t, 50, prediction.SampleSize)
	require.Greater(t, prediction.PredictedMinutes, 0.0)
	require.Greater(t, prediction.Confidence, 30)
	require.Equal(t, 1.2, prediction.Factors.TimeSlot)
	require.Equal(t, 1.0, prediction.Factors.DayOfWeek)
	require.Greater(t, prediction.Factors.Adjustment, 0.0)
}

func TestPredictETAPeakHourCostsMore(t *testing.T) {
	history := flatHistory(50, 30, 30)

	midday := trends.PredictETA(history, 10, trends.Conditions{Hour: 14, DayOfWeek: 2, Weather: "clear"})
	peak := trends.PredictETA(history, 10, trends.Conditions{Hour: 8, DayOfWeek: 2, Weather: "clear"})

	require.Greater(t, peak.PredictedMinutes, midday.PredictedMinutes)
}

func TestConfidenceScoreBounds(t *testing.T) {
	require.Equal(t, 100, trends.ConfidenceScore(50, 0))
	require.Equal(t, 100, trends.ConfidenceScore(500, 0))
	require.Equal(t, 40, trends.ConfidenceScore(0, 0))
	require.Equal(t, 0, trends.ConfidenceScore(0, 100))
	require.Equal(t, 0, trends.ConfidenceScore(0, 5000))

	// No sample contribution without samples
	for _, v := range []float64{0, 10, 50, 100, 1000} {
		require.LessOrEqual(t, trends.ConfidenceScore(0, v), 60)
	}

	for n := 0; n <= 100; n += 10 {
		score := trends.ConfidenceScore(n, float64(n))
		require.GreaterOrEqual(t, score, 0)
		require.LessOrEqual(t, score, 100)
	}
}

func TestDelayProbabilityEmptyHistory(t *testing.T) {
	estimate := trends.DelayProbability(nil, 5)

	require.Equal(t, 0.3, estimate.Probability)
	require.Equal(t, 30.0, estimate.ProbabilityPercentage)
	require.Zero(t, estimate.SampleSize)
	require.Zero(t, estimate.Confidence)
}

func TestDelayProbabilityConsistentlyOnTime(t *testing.T) {
	history := flatHistory(50, 30, 30)

	estimate := trends.DelayProbability(history, 5)

	require.InDelta(t, 0.0, estimate.ProbabilityPercentage, 1e-9)
	require.Equal(t, 50, estimate.SampleSize)
	require.Greater(t, estimate.Confidence, 0)
}

func TestDelayProbabilityMixed(t *testing.T) {
	history := append(flatHistory(30, 30, 30), flatHistory(10, 45, 30)...)

	estimate := trends.DelayProbability(history, 5)

	require.InDelta(t, 0.25, estimate.Probability, 1e-9)
	require.Equal(t, 40, estimate.SampleSize)
}

func TestReliabilityScore(t *testing.T) {
	require.Equal(t, 70.0, trends.ReliabilityScore(nil), "empty history must not read as unreliable")

	require.GreaterOrEqual(t, trends.ReliabilityScore(flatHistory(50, 30, 30)), 90.0)

	// Persistently late route bottoms out at zero, never below
	late := flatHistory(50, 60, 30)
	score := trends.ReliabilityScore(late)
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 100.0)
	require.Less(t, score, 50.0)
}

type stubRepository struct {
	records []transit.TripRecord
	err     error
}

func (s stubRepository) RecentTrips(ctx context.Context, routeID string, limit int) ([]transit.TripRecord, error) {
	return s.records, s.err
}

func TestAnalyzerDegradesOnRepositoryFailure(t *testing.T) {
	analyzer := trends.NewAnalyzer(stubRepository{err: errors.New("persistence timeout")})

	prediction := analyzer.PredictRouteETA(context.Background(), "1:ROUTE:42", 10, trends.Conditions{Hour: 14, DayOfWeek: 3, Weather: "clear"})

	require.Equal(t, trends.MethodFallback, prediction.Method)
	require.Equal(t, 30, prediction.Confidence)
}

func TestAnalyzerUsesRepositoryWindow(t *testing.T) {
	analyzer := trends.NewAnalyzer(stubRepository{records: flatHistory(50, 30, 30)})

	require.GreaterOrEqual(t, analyzer.RouteReliabilityScore(context.Background(), "1:ROUTE:42"), 90.0)

	estimate := analyzer.RouteDelayProbability(context.Background(), "1:ROUTE:42", 5)
	require.Equal(t, 50, estimate.SampleSize)
}

func TestTripRecordClampsEarlyArrival(t *testing.T) {
	record := transit.NewTripRecord("1:ROUTE:42", time.Now(), 25, 30, "clear", 2, 10)

	require.Zero(t, record.DelayMinutes)
}
