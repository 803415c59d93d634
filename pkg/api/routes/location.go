package routes

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/vanit/vanit/pkg/fleet"
	"github.com/vanit/vanit/pkg/registry"
	"golang.org/x/exp/slices"
)

var validate = validator.New()

type locationUpdateForm struct {
	VehicleID  string   `json:"vehicleId" validate:"required"`
	Latitude   *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	ObservedAt string   `json:"observedAt"`
}

func LocationRouter(router fiber.Router, vehicleRegistry *registry.Registry) {
	router.Post("/update", updateLocation(vehicleRegistry))
	router.Get("/vehicle/:identifier", getVehicleLocation(vehicleRegistry))
	router.Get("/route/:routeName", listRouteVehicles(vehicleRegistry))
	router.Post("/vehicle/:identifier/start", startBroadcasting(vehicleRegistry))
	router.Post("/vehicle/:identifier/stop", stopBroadcasting(vehicleRegistry))
}

func updateLocation(vehicleRegistry *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var form locationUpdateForm
		if err := c.BodyParser(&form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse location update",
			})
		}
		if err := validate.Struct(form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		observedAt := time.Now()
		if form.ObservedAt != "" {
			parsed, err := time.Parse(time.RFC3339, form.ObservedAt)
			if err != nil {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "observedAt must be RFC 3339",
				})
			}
			observedAt = parsed
		}

		err := vehicleRegistry.Update(c.Context(), form.VehicleID, *form.Latitude, *form.Longitude, observedAt)
		switch {
		case errors.Is(err, registry.ErrVehicleNotFound):
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Captain matching Vehicle Identifier",
			})
		case errors.Is(err, registry.ErrVehicleInactive):
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Vehicle is not active",
			})
		case err != nil:
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

func getVehicleLocation(vehicleRegistry *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		position, err := vehicleRegistry.Get(identifier)
		if err != nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find a current position for Vehicle Identifier",
			})
		}

		positionReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, position)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce VehiclePosition",
			})
		}

		return c.JSON(positionReduced)
	}
}

func listRouteVehicles(vehicleRegistry *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeName := c.Params("routeName")

		positions := vehicleRegistry.ListForRoute(routeName)
		slices.SortFunc(positions, func(a fleet.VehiclePosition, b fleet.VehiclePosition) int {
			return strings.Compare(a.VehicleID, b.VehicleID)
		})

		return c.JSON(positions)
	}
}

func startBroadcasting(vehicleRegistry *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		err := vehicleRegistry.Start(c.Context(), identifier)
		switch {
		case errors.Is(err, registry.ErrVehicleNotFound):
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Captain matching Vehicle Identifier",
			})
		case errors.Is(err, registry.ErrVehicleInactive):
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Vehicle is not active",
			})
		case err != nil:
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"status": "broadcasting",
		})
	}
}

func stopBroadcasting(vehicleRegistry *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		if err := vehicleRegistry.Stop(c.Context(), identifier); err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"status": "stopped",
		})
	}
}
