package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/boardkit/boardkit/pkg/server"
)

// serveCommand runs the board authority.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board API and websocket rooms",
		Long:  `Serve hosts the board HTTP API (versioned patch endpoint, board documents) and the websocket rooms that relay element deltas and presence between participants. Configure the store backend and an optional redis broker via a TOML config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return c.runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (c *CLI) runServer(ctx context.Context, cfg Config) error {
	logger := LoggerFrom(ctx)
	store, err := c.newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	var broker server.Broker
	if cfg.Redis.Addr != "" {
		rb, err := server.NewRedisBroker(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		broker = rb
		defer rb.Close()
		logger.Info("redis broker attached", "addr", cfg.Redis.Addr)
	}

	srv := server.New(server.Options{
		Addr:   cfg.Server.Addr,
		Store:  store,
		Broker: broker,
		Logger: logger,
	})
	return srv.ListenAndServe(ctx)
}

func (c *CLI) newStore(ctx context.Context, cfg Config) (server.BoardStore, error) {
	logger := LoggerFrom(ctx)
	switch cfg.Store.Backend {
	case "mongo":
		p := newProgress(logger)
		store, err := server.NewMongoStore(ctx, cfg.Store.MongoURI, cfg.Store.MongoDB)
		if err != nil {
			return nil, err
		}
		p.done("connected to mongodb", "db", cfg.Store.MongoDB)
		return store, nil
	default:
		logger.Warn("using in-memory store, boards are lost on restart")
		return server.NewMemoryStore(), nil
	}
}
