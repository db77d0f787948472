package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/borashehu-gorgias/flows-migrator/pkg/completion"
	"github.com/borashehu-gorgias/flows-migrator/pkg/log"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
)

const defaultPort = 3000

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "flows-migrator",
		Usage:                 "Move flow configurations between helpdesk accounts",
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
				Name:    "redis-url",
				Usage:   "Redis connection URL for session storage (empty keeps sessions in memory)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "completion-url",
				Usage:   "Chat-completion API base URL for guidance generation",
				Sources: cli.EnvVars("COMPLETION_URL"),
			},
			&cli.StringFlag{
				Name:    "completion-api-key",
				Usage:   "Chat-completion API key (empty disables remote generation)",
				Sources: cli.EnvVars("COMPLETION_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "completion-model",
				Usage:   "Chat-completion model name",
				Value:   "gpt-4o",
				Sources: cli.EnvVars("COMPLETION_MODEL"),
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

			logger.InfoContext(ctx, "Initializing Flows Migrator API")

			store, err := newSessionStore(command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close session store", "error", err)
				}
			}()

			completionClient := completion.NewClient(
				command.String("completion-url"),
				command.String("completion-api-key"),
				command.String("completion-model"),
				log.WithModule("completion"),
			)

			api := NewAPI(logger, store, completionClient)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func newSessionStore(redisURL string) (session.Store, error) {
	if redisURL == "" {
		return session.NewMemoryStore(session.DefaultTTL), nil
	}

	return session.NewRedisStore(redisURL, session.DefaultTTL)
}
