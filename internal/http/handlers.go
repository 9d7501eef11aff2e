package http

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
	"github.com/cenfotec-cedula5/energy-monitor/internal/metrics"
	"github.com/cenfotec-cedula5/energy-monitor/internal/service"
)

const (
	statusOK    = "éxito"
	statusError = "error"

	messageAnalyzed = "Datos analizados correctamente."
)

// Register mounts the device, viewer and landing routes.
func Register(app *fiber.App, svcs *service.Services, staticDir string) {
	index := filepath.Join(staticDir, "index.html")
	app.Get("/", func(c *fiber.Ctx) error { return c.SendFile(index) })
	app.Get("/index.html", func(c *fiber.Ctx) error { return c.SendFile(index) })

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	g := app.Group("/")
	g.Post("datos_esp32", func(c *fiber.Ctx) error {
		rd, err := domain.ParseReading(c.Body(), domain.SourceHTTP, time.Now().UTC())
		if err != nil {
			metrics.IncRejected(domain.SourceHTTP)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": statusError, "message": err.Error()})
		}
		if err := svcs.Analysis.Ingest(c.UserContext(), rd); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": statusError, "message": err.Error()})
		}
		return c.JSON(fiber.Map{"status": statusOK, "message": messageAnalyzed})
	})
	g.Get("get_analisis", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"analisis": svcs.Analysis.Latest().Text})
	})
}

// ErrorHandler renders unhandled errors in the same envelope as the device routes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"status": statusError, "message": err.Error()})
}
