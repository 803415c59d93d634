package routes

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vanit/vanit/pkg/boardingtoken"
)

func BoardingTokenRouter(router fiber.Router, tokens *boardingtoken.Service) {
	router.Get("/:routeName", issueBoardingToken(tokens))
	router.Post("/validate", validateBoardingToken(tokens))
}

// issueBoardingToken is what the vehicle's display calls to refresh its QR
// code. The encoded token is opaque to the caller.
func issueBoardingToken(tokens *boardingtoken.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeName := c.Params("routeName")

		token := tokens.Issue(routeName, time.Now())

		return c.JSON(fiber.Map{
			"token":     tokens.Encode(token),
			"routeName": token.RouteName,
			"expiresAt": token.ExpiresAt,
		})
	}
}

func validateBoardingToken(tokens *boardingtoken.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var form struct {
			Token string `json:"token" validate:"required"`
		}
		if err := c.BodyParser(&form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse validation request",
			})
		}
		if err := validate.Struct(form); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		routeName, err := tokens.Validate(form.Token, time.Now())
		switch {
		case errors.Is(err, boardingtoken.ErrTokenMalformed),
			errors.Is(err, boardingtoken.ErrTokenExpired),
			errors.Is(err, boardingtoken.ErrTokenForged):
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		case err != nil:
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"valid":     true,
			"routeName": routeName,
		})
	}
}
