package main

import (
	"context"
	"fmt"
	"log"

	common_api "records-console/internal/common/api"
	"records-console/internal/config"
	"records-console/internal/database"
	"records-console/internal/features/audit"
	"records-console/internal/features/auth"
	"records-console/internal/features/commit"
	cron_feature "records-console/internal/features/cron"
	"records-console/internal/features/lead"
	"records-console/internal/features/lookup"
	"records-console/internal/features/notification"
	"records-console/internal/features/pending"
	"records-console/internal/features/session"
	"records-console/internal/features/system"
	"records-console/internal/features/workflow"
	"records-console/internal/gateway"
	"records-console/internal/logger"
	"records-console/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config, zl *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware(cfg))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.RequestLogger(zl))

	return app
}

// AsRoute tags the constructor so Fx adds it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every member of the "routes" group.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			// Records backend
			gateway.NewResourceGateway,

			// Repositories
			audit.NewAuditRepository,
			pending.NewPendingRepository,
			session.NewSessionStore,

			// Services
			audit.NewAuditService,
			session.NewSessionService,
			lookup.NewLookupService,
			workflow.NewStageWorkflowGuard,
			pending.NewPendingService,
			commit.NewCommitCoordinator,
			cron_feature.NewCronService,
			notification.NewHub,
			middleware.NewAuthenticator,

			// Interface adapters to break circular dependencies and satisfy Fx
			func(s audit.AuditService) session.Auditor { return s },
			func(h *notification.Hub) notification.Publisher { return h },

			// Controllers
			auth.NewAuthController,
			lead.NewLeadController,
			audit.NewAuditController,
			notification.NewNotificationController,
			cron_feature.NewCronController,

			// API routes
			AsRoute(system.NewHealthApi),
			AsRoute(auth.NewAuthApi),
			AsRoute(lead.NewLeadApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(cron_feature.NewCronApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, cronService cron_feature.CronService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return cronService.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return cronService.StopScheduler()
					},
				})
			},
		),
	)

	app.Run()
}
