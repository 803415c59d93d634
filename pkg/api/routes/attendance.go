package routes

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/vanit/vanit/pkg/attendance"
	"github.com/vanit/vanit/pkg/boardingtoken"
	"github.com/vanit/vanit/pkg/fleet"
)

type scanForm struct {
	StudentID string          `json:"studentId" validate:"required"`
	Token     string          `json:"token" validate:"required"`
	Location  *fleet.Location `json:"location"`
}

type sessionForm struct {
	CaptainID string `json:"captainId" validate:"required"`
	RouteName string `json:"routeName" validate:"required"`
}

// Route is optional on end. Omitting it ends every active session the
// captain has open.
type endSessionForm struct {
	CaptainID string `json:"captainId" validate:"required"`
	RouteName string `json:"routeName"`
}

func AttendanceRouter(router fiber.Router, manager *attendance.Manager) {
	router.Post("/scan", recordScan(manager))
	router.Post("/sessions/start", startSession(manager))
	router.Post("/sessions/end", endSession(manager))
	router.Get("/sessions/active", listActiveSessions(manager))
	router.Get("/history/:studentId", getStudentHistory(manager))
}

func recordScan(manager *attendance.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var form scanForm
		if err := c.BodyParser(&form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse scan request",
			})
		}
		if err := validate.Struct(form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		result, err := manager.RecordScan(c.Context(), form.StudentID, form.Token, form.Location)
		switch {
		case errors.Is(err, boardingtoken.ErrTokenMalformed),
			errors.Is(err, boardingtoken.ErrTokenExpired),
			errors.Is(err, boardingtoken.ErrTokenForged):
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, attendance.ErrStudentNotFound):
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Student matching Student Identifier",
			})
		case errors.Is(err, attendance.ErrRouteMismatch),
			errors.Is(err, attendance.ErrNoActiveVehicle),
			errors.Is(err, attendance.ErrDuplicateScan):
			c.SendStatus(fiber.StatusConflict)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		case err != nil:
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(result)
	}
}

func startSession(manager *attendance.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var form sessionForm
		if err := c.BodyParser(&form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse session request",
			})
		}
		if err := validate.Struct(form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		session, err := manager.StartSession(c.Context(), form.CaptainID, form.RouteName)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(session)
	}
}

func endSession(manager *attendance.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var form endSessionForm
		if err := c.BodyParser(&form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse session request",
			})
		}
		if err := validate.Struct(form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		ended, err := manager.EndSession(c.Context(), form.CaptainID, form.RouteName)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"endedSessions": ended,
		})
	}
}

func listActiveSessions(manager *attendance.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions, err := manager.ActiveSessions(c.Context(), c.Query("captain"), c.Query("route"))
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(sessions)
	}
}

func getStudentHistory(manager *attendance.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		studentID := c.Params("studentId")

		var from *time.Time
		var to *time.Time

		if dateFrom := c.Query("dateFrom"); dateFrom != "" {
			parsed, err := time.Parse(time.RFC3339, dateFrom)
			if err != nil {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "dateFrom must be RFC 3339",
				})
			}
			from = &parsed
		}
		if dateTo := c.Query("dateTo"); dateTo != "" {
			parsed, err := time.Parse(time.RFC3339, dateTo)
			if err != nil {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "dateTo must be RFC 3339",
				})
			}
			to = &parsed
		}

		limit, err := strconv.ParseInt(c.Query("limit", "100"), 10, 64)
		if err != nil || limit < 0 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "limit must be a non-negative number",
			})
		}

		records, err := manager.History(c.Context(), studentID, from, to, limit)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		groups := []string{"basic"}
		if c.Query("detailed") == "true" {
			groups = append(groups, "detailed")
		}

		recordsReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: groups,
		}, records)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce AttendanceRecords",
			})
		}

		return c.JSON(recordsReduced)
	}
}
