package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vanit/vanit/pkg/api/routes"
	"github.com/vanit/vanit/pkg/attendance"
	"github.com/vanit/vanit/pkg/boardingtoken"
	"github.com/vanit/vanit/pkg/registry"
)

// Dependencies carries the wired domain components into the route handlers.
type Dependencies struct {
	Registry   *registry.Registry
	Attendance *attendance.Manager
	Tokens     *boardingtoken.Service
}

func SetupServer(listen string, dependencies Dependencies) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.LocationRouter(group.Group("/location"), dependencies.Registry)
	routes.AttendanceRouter(group.Group("/attendance"), dependencies.Attendance)
	routes.BoardingTokenRouter(group.Group("/boarding_tokens"), dependencies.Tokens)

	return webApp.Listen(listen)
}
