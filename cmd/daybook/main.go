package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"daybook/internal/auth"
	"daybook/internal/config"
	"daybook/internal/ics"
	appLog "daybook/internal/log"
	"daybook/internal/notify"
	"daybook/internal/service"
	"daybook/internal/store"
	"daybook/internal/web"
)

const version = "0.1.0"

// feedTimeout bounds a single remote calendar download.
const feedTimeout = 15 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "daybook",
		Short:         "Personal schedule server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./daybook.yaml", "Path to config file")

	rootCmd.AddCommand(serveCmd(&configPath), initDBCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		appLog.Error("daybook failed", err)
		_ = appLog.Sync()
		os.Exit(1)
	}
	_ = appLog.Sync()
}

func loadConfig(path string) (*config.Config, error) {
	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(appLog.Level(conf.LogLevel))
	return conf, nil
}

func serveCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				conf.Listen = listen
			}

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, conf)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func initDBCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the storage backend and apply migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), conf)
			if err != nil {
				return err
			}
			appLog.Info("storage ready", "database_url_set", conf.DatabaseURL != "", "data_dir", conf.DataDir)
			return st.Close()
		},
	}
}

func serve(ctx context.Context, conf *config.Config) error {
	appLog.Info("daybook starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"data_dir", conf.DataDir,
		"database", conf.DatabaseURL != "",
		"redis", conf.RedisAddr != "",
		"amqp", conf.AMQPURL != "",
		"admin_username", conf.AdminUsername,
	)

	st, err := store.Open(ctx, conf)
	if err != nil {
		return err
	}
	defer st.Close()

	ttl := time.Duration(conf.SessionTTLHours) * time.Hour
	sessions, cleanup, err := openSessions(ctx, conf, ttl)
	if err != nil {
		return err
	}
	defer cleanup()

	publisher, err := openPublisher(conf)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc := service.New(st, service.Options{
		AdminUsername:      conf.AdminUsername,
		PasswordIterations: conf.PasswordIterations,
		SlotWindowStart:    conf.SlotWindowStart,
		SlotWindowEnd:      conf.SlotWindowEnd,
		Publisher:          publisher,
		Fetcher:            ics.NewFetcher(filepath.Join(conf.DataDir, "ics-cache"), feedTimeout),
	})
	srv := web.NewServer(svc, sessions, web.Options{
		CookieSecure: conf.CookieSecure,
		SessionTTL:   ttl,
	})

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http server shutdown failed", err)
	}
	appLog.Info("daybook exiting")
	return nil
}

// openSessions picks Redis when configured, otherwise an in-memory store
// swept of expired sessions by a cron job.
func openSessions(ctx context.Context, conf *config.Config, ttl time.Duration) (auth.Sessions, func(), error) {
	if conf.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: conf.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		appLog.Info("sessions stored in redis", "addr", conf.RedisAddr)
		return auth.NewRedisSessions(client, ttl), func() { _ = client.Close() }, nil
	}

	mem := auth.NewMemorySessions(ttl)
	c := cron.New()
	if _, err := c.AddFunc("@every 10m", func() {
		if n := mem.Sweep(); n > 0 {
			appLog.Debug("expired sessions removed", "count", n)
		}
	}); err != nil {
		return nil, nil, err
	}
	c.Start()
	return mem, func() { <-c.Stop().Done() }, nil
}

type closablePublisher interface {
	notify.Publisher
	Close()
}

type nopCloser struct{ notify.Nop }

func (nopCloser) Close() {}

func openPublisher(conf *config.Config) (closablePublisher, error) {
	if conf.AMQPURL == "" {
		return nopCloser{}, nil
	}
	p := notify.NewProducer(conf.AMQPURL)
	if err := p.Open(); err != nil {
		return nil, err
	}
	appLog.Info("publishing event changes", "exchange", notify.DefaultExchange)
	return p, nil
}
