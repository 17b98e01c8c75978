// Package main provides the Threadline API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threadlinehq/threadline/pkg/consent"
	"github.com/threadlinehq/threadline/pkg/conversation"
	"github.com/threadlinehq/threadline/pkg/eventbus"
	"github.com/threadlinehq/threadline/pkg/monitoring"
	"github.com/threadlinehq/threadline/pkg/persistence"
	"github.com/threadlinehq/threadline/pkg/processor"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/registry"
	"github.com/threadlinehq/threadline/pkg/web"
	"github.com/threadlinehq/threadline/pkg/workflow"
)

type API struct {
	logger        *slog.Logger
	store         persistence.Persistence
	registry      *registry.Registry
	monitor       *monitoring.Monitor
	proc          *processor.Processor
	eventBus      eventbus.EventBus
	webhookSecret string
	queueIntake   bool
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	locker protocol.Locker,
	webhookSecret string,
	intakeMode string,
) *API {
	monitor := monitoring.NewMonitor(
		prometheus.DefaultRegisterer,
		logger,
		monitoring.NewLogSink(logger),
		monitoring.NewEventBusSink(eventBus),
	)

	guard := consent.NewGuard(store.OptOuts(), store.Consents(), logger)
	threader := conversation.NewThreader(store.Messages(), locker, conversation.DefaultInactivityWindow, logger)
	executor := workflow.NewExecutor(store.Executions(), reg, eventBus, logger, workflow.DefaultConfig())
	proc := processor.NewProcessor(guard, threader, store.Workflows(), executor, monitor, locker, logger)

	return &API{
		logger:        logger,
		store:         store,
		registry:      reg,
		monitor:       monitor,
		proc:          proc,
		eventBus:      eventBus,
		webhookSecret: webhookSecret,
		queueIntake:   intakeMode == "queue",
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.store, a.proc, a.registry, a.monitor, a.eventBus, a.webhookSecret, a.queueIntake)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
