package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Recover turns a handler panic into a 500 handled by the app's ErrorHandler.
func Recover(logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				rid, _ := c.Locals(RequestIDLocalKey).(string)
				logger.Error("http_panic",
					zap.String("request_id", rid),
					zap.String("path", c.Path()),
					zap.String("panic", fmt.Sprint(r)),
				)
				err = fiber.ErrInternalServerError
			}
		}()
		return c.Next()
	}
}
