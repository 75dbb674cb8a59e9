package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ridepulse/ridepulse/pkg/api/routes"
	"github.com/ridepulse/ridepulse/pkg/hub"
	"github.com/ridepulse/ridepulse/pkg/scheduler"
	"github.com/ridepulse/ridepulse/pkg/tracker"
	"github.com/ridepulse/ridepulse/pkg/trends"
)

// Dependencies are the engine collaborators the HTTP surface exposes
type Dependencies struct {
	Engine    *tracker.Tracker
	Analyzer  *trends.Analyzer
	Hub       *hub.Hub
	Scheduler *scheduler.Scheduler
}

func SetupServer(listen string, deps Dependencies) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.VehiclesRouter(group.Group("/vehicles"), deps.Engine)
	routes.PredictionsRouter(group.Group("/predictions"), deps.Analyzer)
	routes.HubRouter(group.Group("/hub"), deps.Hub, deps.Scheduler)

	return webApp.Listen(listen)
}
