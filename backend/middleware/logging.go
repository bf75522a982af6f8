package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"learnpath/backend/utils"
)

func LoggingMiddleware(logger *log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		user := "-"
		if claims, ok := utils.CurrentClaims(c); ok {
			user = strconv.FormatUint(uint64(claims.UserID), 10)
		}
		logger.Printf(
			"%s %s %s %d %v user=%s",
			c.IP(),
			c.Method(),
			c.Path(),
			c.Response().StatusCode(),
			time.Since(start),
			user,
		)

		return err
	}
}
