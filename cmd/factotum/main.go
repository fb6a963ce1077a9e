package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factotum/internal/assistant"
	"factotum/internal/bus"
	"factotum/internal/capability"
	"factotum/internal/channel"
	"factotum/internal/config"
	"factotum/internal/domain"
	"factotum/internal/memory"
	"factotum/internal/oracle"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "factotum",
		Short: "Personal assistant composed of capability agents",
		Long:  "Factotum is a personal assistant that answers over CLI, Telegram and Slack,\nusing weather, web, notes, reminder and contact tools.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to config file")

	root.AddCommand(initCmd(), chatCmd(), gatewayCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ExpandPath(configPath)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}

			cfg := config.Defaults()
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.Workspace), 0o755); err != nil {
				return fmt.Errorf("cannot create workspace: %w", err)
			}

			fmt.Println("Created", path)
			fmt.Println("Set OPENAI_API_KEY (or edit the oracle section) before running.")
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOrDefault(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			go rt.service.Run(ctx)
			go func() {
				if err := rt.scheduler.Start(ctx); err != nil {
					rt.logger.Error("reminder scheduler stopped", "err", err)
				}
			}()

			cli := channel.NewCLI(channel.CLIConfig{Logger: rt.logger})
			return cli.Start(ctx, rt.bus)
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the always-on gateway with all configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			var channels []domain.Channel
			if cfg.Channels.Telegram.Enabled {
				channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
					Token:     cfg.Channels.Telegram.Token,
					AllowFrom: cfg.Channels.Telegram.AllowFrom,
					Logger:    rt.logger,
				}))
			}
			if cfg.Channels.Slack.Enabled {
				channels = append(channels, channel.NewSlack(channel.SlackConfig{
					BotToken: cfg.Channels.Slack.BotToken,
					AppToken: cfg.Channels.Slack.AppToken,
					Logger:   rt.logger,
				}))
			}
			if len(channels) == 0 {
				return fmt.Errorf("no channels enabled; enable telegram or slack in %s", configPath)
			}

			go rt.service.Run(ctx)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return rt.scheduler.Start(gctx)
			})
			for _, ch := range channels {
				ch := ch
				g.Go(func() error {
					rt.logger.Info("starting channel", "channel", ch.Name())
					if err := ch.Start(gctx, rt.bus); err != nil {
						return fmt.Errorf("channel %s: %w", ch.Name(), err)
					}
					return nil
				})
			}

			rt.logger.Info("gateway running", "channels", len(channels))
			err = g.Wait()
			rt.logger.Info("gateway shutting down")

			for _, ch := range channels {
				if serr := ch.Stop(); serr != nil {
					rt.logger.Error("channel stop failed", "channel", ch.Name(), "err", serr)
				}
			}
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration and oracle reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Println("Config: OK")
			fmt.Printf("Oracle chain: %v\n", cfg.Oracle.Chain)

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
			orc, err := oracle.Build(cfg.Oracle, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := orc.Healthy(ctx); err != nil {
				fmt.Printf("Oracle %s: UNREACHABLE (%v)\n", orc.Name(), err)
				os.Exit(1)
			}
			fmt.Printf("Oracle %s: OK\n", orc.Name())
			return nil
		},
	}
}

// runtime bundles everything the chat and gateway commands share.
type runtime struct {
	logger    *slog.Logger
	bus       *bus.Bus
	store     *memory.Store
	scheduler *capability.ReminderScheduler
	service   *assistant.Service
}

func (rt *runtime) shutdown() {
	rt.bus.Close()
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("store close failed", "err", err)
	}
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	msgBus := bus.New(100, logger)

	store, err := memory.NewStore(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	orc, err := oracle.Build(cfg.Oracle, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	scheduler := capability.NewReminderScheduler(store, msgBus, logger)

	agents := []*capability.Agent{
		capability.NewWeather(),
		capability.NewWeb(),
		capability.NewNotes(cfg.Workspace),
		capability.NewReminders(scheduler),
		capability.NewContacts(store),
	}

	var turnTimeout time.Duration
	if cfg.Assistant.TurnTimeout != "" {
		turnTimeout, err = time.ParseDuration(cfg.Assistant.TurnTimeout)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("assistant.turn_timeout: %w", err)
		}
	}

	a, err := assistant.New(assistant.Config{
		Name:          cfg.Assistant.Name,
		Instructions:  cfg.Assistant.Instructions,
		Oracle:        orc,
		Agents:        agents,
		Store:         store,
		Logger:        logger,
		MaxTokens:     cfg.Assistant.MaxTokens,
		Temperature:   cfg.Assistant.Temperature,
		MaxIterations: cfg.Assistant.MaxIterations,
		MaxTurns:      cfg.Assistant.MaxTurns,
		TurnTimeout:   turnTimeout,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	svc := assistant.NewService(a, msgBus, logger, cfg.Assistant.Concurrency)

	return &runtime{
		logger:    logger,
		bus:       msgBus,
		store:     store,
		scheduler: scheduler,
		service:   svc,
	}, nil
}

// loadOrDefault loads the config file, falling back to defaults when the file
// does not exist so `factotum chat` works out of the box.
func loadOrDefault(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Defaults()
		cfg.Workspace = config.ExpandPath(cfg.Workspace)
		cfg.Database = config.ExpandPath(cfg.Database)
		return cfg, nil
	}
	return nil, err
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
