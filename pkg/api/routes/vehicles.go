package routes

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/ridepulse/ridepulse/pkg/statestore"
	"github.com/ridepulse/ridepulse/pkg/tracker"
	"github.com/ridepulse/ridepulse/pkg/transit"
)

type telemetryRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	Speed          *float64 `json:"speed"`
	Direction      *float64 `json:"direction"`
	PassengerCount *int     `json:"passengerCount"`
	TrafficLevel   *string  `json:"trafficLevel"`

	DestinationLatitude  *float64 `json:"destinationLatitude"`
	DestinationLongitude *float64 `json:"destinationLongitude"`

	RouteID string `json:"routeId"`

	RecordedAt *time.Time `json:"recordedAt"`
}

type shareRequest struct {
	Recipients  []string `json:"recipients"`
	ExpiryHours int      `json:"expiryHours"`
}

type passengerRequest struct {
	Action string `json:"action"`
}

type capacityRequest struct {
	TotalSeats int `json:"totalSeats"`
}

func VehiclesRouter(router fiber.Router, engine *tracker.Tracker) {
	router.Post("/:identifier/telemetry", postVehicleTelemetry(engine))
	router.Get("/:identifier", getVehicle(engine))
	router.Get("/:identifier/eta", getVehicleETA(engine))
	router.Post("/:identifier/share", postVehicleShare(engine))
	router.Post("/:identifier/passengers", postVehiclePassengers(engine))
	router.Post("/:identifier/capacity", postVehicleCapacity(engine))
}

func postVehicleTelemetry(engine *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		var requestBody telemetryRequest
		if err := c.BodyParser(&requestBody); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Failed to decode request body",
			})
		}

		location := transit.NewLocation(requestBody.Latitude, requestBody.Longitude)

		telemetryEvent := transit.TelemetryEvent{
			DeviceID: identifier,

			Location: &location,

			SpeedKMH:         requestBody.Speed,
			DirectionDegrees: requestBody.Direction,
			PassengerCount:   requestBody.PassengerCount,

			RouteID: requestBody.RouteID,

			DataSource: "api",
		}

		if requestBody.TrafficLevel != nil {
			trafficLevel := transit.TrafficLevel(*requestBody.TrafficLevel)
			telemetryEvent.TrafficLevel = &trafficLevel
		}

		if requestBody.DestinationLatitude != nil && requestBody.DestinationLongitude != nil {
			destination := transit.NewLocation(*requestBody.DestinationLatitude, *requestBody.DestinationLongitude)
			telemetryEvent.Destination = &destination
		}

		if requestBody.RecordedAt != nil {
			telemetryEvent.RecordedAt = *requestBody.RecordedAt
		} else {
			telemetryEvent.RecordedAt = time.Now()
		}

		if err := engine.HandleTelemetry(c.Context(), telemetryEvent); err != nil {
			if errors.Is(err, transit.ErrInvalidLocation) {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Coordinates out of range",
				})
			}

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"status": "accepted",
		})
	}
}

func getVehicle(engine *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		state, err := engine.Store.GetState(identifier)
		if err != nil {
			// the tracker may run in another process, so fall back to the
			// persisted snapshot
			persisted, loadErr := statestore.LoadVehicleState(c.Context(), identifier)
			if loadErr != nil {
				c.SendStatus(fiber.StatusNotFound)
				return c.JSON(fiber.Map{
					"error": "Could not find Vehicle matching Vehicle Identifier",
				})
			}

			state = *persisted
		}

		stateReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, state)

		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce vehicle state",
			})
		}

		return c.JSON(stateReduced)
	}
}

func getVehicleETA(engine *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		latitude, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		longitude, lngErr := strconv.ParseFloat(c.Query("lng"), 64)

		if latErr != nil || lngErr != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameters lat and lng must be numbers",
			})
		}

		result, err := engine.ETAToDestination(identifier, latitude, longitude)
		if err != nil {
			if errors.Is(err, transit.ErrInvalidLocation) {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Coordinates out of range",
				})
			}

			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Vehicle matching Vehicle Identifier",
			})
		}

		return c.JSON(result)
	}
}

func postVehicleShare(engine *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		var requestBody shareRequest
		if err := c.BodyParser(&requestBody); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Failed to decode request body",
			})
		}

		if len(requestBody.Recipients) == 0 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "At least one recipient is required",
			})
		}

		if requestBody.ExpiryHours <= 0 {
			requestBody.ExpiryHours = 24
		}

		state, err := engine.ShareLocation(identifier, requestBody.Recipients, requestBody.ExpiryHours)
		if err != nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Vehicle matching Vehicle Identifier",
			})
		}

		return c.JSON(fiber.Map{
			"deviceId":   identifier,
			"sharedWith": state.SharedWith,
		})
	}
}

func postVehiclePassengers(engine *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		var requestBody passengerRequest
		if err := c.BodyParser(&requestBody); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Failed to decode request body",
			})
		}

		state, err := engine.Passenger(identifier, requestBody.Action)
		if err != nil {
			switch {
			case errors.Is(err, tracker.ErrUnknownAction):
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Action must be board or alight",
				})
			case errors.Is(err, transit.ErrVehicleFull):
				c.SendStatus(fiber.StatusConflict)
				return c.JSON(fiber.Map{
					"error": "Vehicle is at capacity",
				})
			default:
				c.SendStatus(fiber.StatusNotFound)
				return c.JSON(fiber.Map{
					"error": "Could not find Vehicle matching Vehicle Identifier",
				})
			}
		}

		return c.JSON(state.Capacity)
	}
}

func postVehicleCapacity(engine *tracker.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		var requestBody capacityRequest
		if err := c.BodyParser(&requestBody); err != nil || requestBody.TotalSeats < 0 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "totalSeats must be zero or greater",
			})
		}

		state, err := engine.Store.SetCapacity(identifier, requestBody.TotalSeats)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(state.Capacity)
	}
}
