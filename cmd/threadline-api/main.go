package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/threadlinehq/threadline/pkg/cmd"
	"github.com/threadlinehq/threadline/pkg/integrations"
	"github.com/threadlinehq/threadline/pkg/log"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "threadline-api",
		Usage:                 "Receive inbound messages and manage workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for cross-process contact locking",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Usage:   "HMAC secret for inbound webhook signatures",
				Sources: cli.EnvVars("WEBHOOK_SECRET"),
			},
			&cli.StringFlag{
				Name:    "intake-mode",
				Usage:   "Inbound webhook handling: sync (process in-request) or queue (publish for workers)",
				Value:   "sync",
				Sources: cli.EnvVars("INTAKE_MODE"),
			},
			&cli.StringFlag{
				Name:    "ai-service-url",
				Usage:   "Base URL of the AI completion service",
				Sources: cli.EnvVars("AI_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "ai-api-key",
				Usage:   "API key for the AI completion service",
				Sources: cli.EnvVars("AI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "carrier-url",
				Usage:   "Base URL of the messaging carrier API",
				Sources: cli.EnvVars("CARRIER_URL"),
			},
			&cli.StringFlag{
				Name:    "carrier-api-key",
				Usage:   "API key for the messaging carrier",
				Sources: cli.EnvVars("CARRIER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "ticketing-url",
				Usage:   "Base URL of the ticketing API (ticketing disabled when unset)",
				Sources: cli.EnvVars("TICKETING_URL"),
			},
			&cli.StringFlag{
				Name:    "ticketing-api-key",
				Usage:   "API key for the ticketing API",
				Sources: cli.EnvVars("TICKETING_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Threadline API")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var ticketer protocol.Ticketer = protocol.UnavailableTicketer{}
			if url := command.String("ticketing-url"); url != "" {
				ticketer = integrations.NewHTTPTicketer(url, command.String("ticketing-api-key"))
			}

			reg := cmd.NewRegistry(logger, cmd.HandlerDeps{
				AI:        integrations.NewHTTPAIClient(command.String("ai-service-url"), command.String("ai-api-key")),
				Messenger: integrations.NewHTTPMessenger(command.String("carrier-url"), command.String("carrier-api-key")),
				Ticketer:  ticketer,
			})

			locker := cmd.NewLocker(command.String("redis-url"))

			api := NewAPI(logger, store, reg, eventBus, locker, command.String("webhook-secret"), command.String("intake-mode"))

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
