// Package main provides the Autoflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/autoflowhq/autoflow/pkg/engine"
	"github.com/autoflowhq/autoflow/pkg/eventbus"
	"github.com/autoflowhq/autoflow/pkg/persistence"
	"github.com/autoflowhq/autoflow/pkg/recorder"
	"github.com/autoflowhq/autoflow/pkg/registry"
	"github.com/autoflowhq/autoflow/pkg/services"
	"github.com/autoflowhq/autoflow/pkg/trigger"
	"github.com/autoflowhq/autoflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	automationService := services.NewAutomation(a.logger, a.persistence, a.registry)

	rec := recorder.NewRecorder(a.logger, a.persistence.RunRepository())
	eng := engine.New(a.logger, rec, a.registry, engine.WithEventBus(a.eventBus))
	runService := services.NewRun(
		a.logger,
		a.persistence,
		trigger.NewMatcher(a.logger),
		eng,
		rec,
		automationService,
		a.eventBus,
	)

	handlers := web.NewAPIHandlers(automationService, runService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Autoflow API")
	})

	au := app.Group("/automations")
	au.Get("/", handlers.ListAutomations)
	au.Post("/", handlers.CreateAutomation)
	au.Get("/:id", handlers.GetAutomation)
	au.Patch("/:id", handlers.UpdateAutomation)
	au.Delete("/:id", handlers.DeleteAutomation)
	au.Post("/:id/enable", handlers.EnableAutomation)
	au.Post("/:id/disable", handlers.DisableAutomation)
	au.Post("/:id/test", handlers.TestAutomation)

	app.Post("/triggers", handlers.CreateTrigger)

	r := app.Group("/runs")
	r.Get("/", handlers.ListRuns)
	r.Get("/:id", handlers.GetRun)

	app.Get("/node-types", handlers.ListNodeTypes)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
