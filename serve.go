package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"checkout-fulfillment/config"
	"checkout-fulfillment/handler"
	"checkout-fulfillment/notify"
	"checkout-fulfillment/service"
	"checkout-fulfillment/store"
	"checkout-fulfillment/webhook"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the notification dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("migrate") {
				cfg.Database.MigrateOnStart = migrate
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

// deps is the wiring shared by serve and dispatch.
type deps struct {
	store      *store.SQLStore
	dispatcher *notify.Dispatcher
}

func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.MigrateOnStart {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		logger.Info("database migrations applied", "driver", cfg.Database.Driver)
	}

	mailer, err := notify.NewSMTPMailer(cfg.Mail)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	renderer, err := notify.NewRenderer(cfg.Site)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("email templates: %w", err)
	}
	d := notify.NewDispatcher(st, mailer, renderer, cfg.Notifications, logger.With("component", "dispatcher"))
	return &deps{store: st, dispatcher: d}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	d, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.store.Close()

	svc := service.NewService(d.store, d.dispatcher, logger.With("component", "service"))
	var serviceInterface service.ServiceInterface = svc

	h := handler.NewHandler(serviceInterface, webhook.NewVerifier(cfg.Stripe.EndpointSecret), d.store, cfg.Site, logger.With("component", "http"))
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server running", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return d.dispatcher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
