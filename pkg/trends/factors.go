package trends

// TimeSlotFactor weights expected congestion by hour of day. The two busiest
// hours inside each peak window get an extra boost.
func TimeSlotFactor(hour int) float64 {
	switch {
	case hour == 8 || hour == 9 || hour == 18 || hour == 19:
		return 1.5
	case hour == 7 || hour == 10 || hour == 17 || hour == 20:
		return 1.4
	case hour >= 11 && hour <= 16:
		return 1.2
	case hour >= 22 || hour <= 5:
		return 0.8
	default:
		return 1.0
	}
}

// DayOfWeekFactor weights expected congestion by day, 0 = Sunday
func DayOfWeekFactor(day int) float64 {
	factors := []float64{0.7, 1.1, 1.0, 1.0, 1.1, 1.3, 0.9}

	if day < 0 || day >= len(factors) {
		return 1.0
	}

	return factors[day]
}

func WeatherFactor(condition string) float64 {
	switch condition {
	case "clear", "cloudy":
		return 1.0
	case "rain":
		return 1.2
	case "heavy_rain":
		return 1.4
	case "fog":
		return 1.3
	default:
		return 1.05
	}
}

// WeightedAverage applies exponential recency weighting - index 0 is the most
// recent value and carries the highest weight
func WeightedAverage(values []float64, decay float64) float64 {
	if len(values) == 0 {
		return 0
	}

	weightedSum := 0.0
	weightSum := 0.0
	weight := 1.0

	for _, value := range values {
		weightedSum += value * weight
		weightSum += weight
		weight *= decay
	}

	return weightedSum / weightSum
}
