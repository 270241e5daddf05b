package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"bustrack_backend/internals/middlewares/logger"
)

// SetupMiddlewares wires the base middleware chain (everything that runs
// before auth).
func SetupMiddlewares(app *fiber.App) {
	app.Use(RecoveryMiddleware())
	app.Use(CorsMiddleware())
	app.Use(logger.LoggerMiddleware())
}
