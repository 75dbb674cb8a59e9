package routes

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"github.com/ridepulse/ridepulse/pkg/trends"
)

type tripReportRequest struct {
	ActualDurationMinutes   float64 `json:"actualDurationMinutes"`
	ExpectedDurationMinutes float64 `json:"expectedDurationMinutes"`

	Weather      string  `json:"weather"`
	TrafficLevel int     `json:"trafficLevel"`
	DistanceKM   float64 `json:"distanceKm"`

	StartedAt *time.Time `json:"startedAt"`
}

func PredictionsRouter(router fiber.Router, analyzer *trends.Analyzer) {
	router.Get("/:route", getRoutePrediction(analyzer))
	router.Get("/:route/delay-probability", getRouteDelayProbability(analyzer))
	router.Get("/:route/reliability", getRouteReliability(analyzer))
	router.Post("/:route/trips", postRouteTrip())
}

func getRoutePrediction(analyzer *trends.Analyzer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID := c.Params("route")

		distanceKM, err := strconv.ParseFloat(c.Query("distance"), 64)
		if err != nil || distanceKM <= 0 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter distance must be a positive number",
			})
		}

		now := time.Now()

		hour, err := strconv.Atoi(c.Query("hour", strconv.Itoa(now.Hour())))
		if err != nil || hour < 0 || hour > 23 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter hour must be between 0 and 23",
			})
		}

		day, err := strconv.Atoi(c.Query("day", strconv.Itoa(int(now.Weekday()))))
		if err != nil || day < 0 || day > 6 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter day must be between 0 and 6",
			})
		}

		prediction := analyzer.PredictRouteETA(c.Context(), routeID, distanceKM, trends.Conditions{
			Hour:      hour,
			DayOfWeek: day,
			Weather:   c.Query("weather", "clear"),
		})

		return c.JSON(fiber.Map{
			"routeId":    routeID,
			"prediction": prediction,
		})
	}
}

func getRouteDelayProbability(analyzer *trends.Analyzer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID := c.Params("route")

		thresholdMinutes, err := strconv.ParseFloat(c.Query("threshold", "5"), 64)
		if err != nil || thresholdMinutes <= 0 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter threshold must be a positive number",
			})
		}

		estimate := analyzer.RouteDelayProbability(c.Context(), routeID, thresholdMinutes)

		return c.JSON(fiber.Map{
			"routeId":  routeID,
			"estimate": estimate,
		})
	}
}

func getRouteReliability(analyzer *trends.Analyzer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID := c.Params("route")

		return c.JSON(fiber.Map{
			"routeId":          routeID,
			"reliabilityScore": analyzer.RouteReliabilityScore(c.Context(), routeID),
		})
	}
}

func postRouteTrip() fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID := c.Params("route")

		var requestBody tripReportRequest
		if err := c.BodyParser(&requestBody); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Failed to decode request body",
			})
		}

		if requestBody.ActualDurationMinutes <= 0 || requestBody.ExpectedDurationMinutes <= 0 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Durations must be positive",
			})
		}

		startedAt := time.Now()
		if requestBody.StartedAt != nil {
			startedAt = *requestBody.StartedAt
		}

		record := transit.NewTripRecord(
			routeID,
			startedAt,
			requestBody.ActualDurationMinutes,
			requestBody.ExpectedDurationMinutes,
			requestBody.Weather,
			requestBody.TrafficLevel,
			requestBody.DistanceKM,
		)

		if err := trends.AppendTripRecord(c.Context(), record); err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to store trip record",
			})
		}

		c.SendStatus(fiber.StatusCreated)
		return c.JSON(record)
	}
}
