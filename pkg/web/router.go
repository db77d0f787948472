package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes mounts every API endpoint on the app.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	authGroup := app.Group("/auth")
	authGroup.Post("/login", handlers.Login)
	authGroup.Post("/manual-token", handlers.ManualToken)
	authGroup.Post("/refresh", handlers.Refresh)
	authGroup.Post("/logout", handlers.Logout)

	flows := app.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Post("/export", handlers.ExportFlows)
	flows.Post("/import", handlers.ImportFlows)
	flows.Post("/migrate", handlers.MigrateFlows)

	guidances := app.Group("/guidances")
	guidances.Post("/preview", handlers.PreviewGuidances)
	guidances.Post("/push", handlers.PushGuidances)

	tickets := app.Group("/tickets")
	tickets.Get("/", handlers.GetTickets)
	tickets.Get("/:id/messages", handlers.GetTicketMessages)
	tickets.Post("/test", handlers.CreateTestTickets)

	app.Get("/health", handlers.HealthCheck)
}
