package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ridepulse/ridepulse/pkg/hub"
	"github.com/ridepulse/ridepulse/pkg/scheduler"
)

func HubRouter(router fiber.Router, eventHub *hub.Hub, notificationScheduler *scheduler.Scheduler) {
	router.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"topics":       eventHub.TopicCounts(),
			"activeTimers": notificationScheduler.ActiveCount(),
		})
	})
}
