// Package main provides the flows migrator API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/borashehu-gorgias/flows-migrator/pkg/auth"
	"github.com/borashehu-gorgias/flows-migrator/pkg/completion"
	"github.com/borashehu-gorgias/flows-migrator/pkg/services"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
	"github.com/borashehu-gorgias/flows-migrator/pkg/web"
)

type API struct {
	logger     *slog.Logger
	store      session.Store
	completion *completion.Client
	validate   *validator.Validate
}

func NewAPI(logger *slog.Logger, store session.Store, completionClient *completion.Client) *API {
	return &API{
		logger:     logger,
		store:      store,
		completion: completionClient,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	accountsService := services.NewAccounts(a.logger, auth.NewBroker(a.logger), a.store)
	migrationService := services.NewMigration(a.logger)
	guidanceService := services.NewGuidance(a.logger, a.completion)

	handlers := web.NewAPIHandlers(accountsService, migrationService, guidanceService, a.store, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flows Migrator API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
