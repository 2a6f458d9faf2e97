package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-initiatives/httpapi"
)

const readHeaderTimeout = 10 * time.Second

func runServe(ctx context.Context, a *app) error {
	commands, queries := a.facade.Commands(), a.facade.Queries()
	router, err := httpapi.NewRouter(httpapi.Deps{
		Ingestor:   a.ingestor,
		Delivery:   commands.RunDelivery,
		QueueStats: queries.QueueStats,
		Actions:    a.actions,
		Actors:     httpapi.JWTActors(a.cfg.JWTSecret),
		Locales:    a.translator,
		CronSecret: a.config.Secrets.CronSecret,
	},
		httpapi.WithLogger(a.logger.GetLogger("http")),
		httpapi.WithMode(a.cfg.GinMode),
	)
	if err != nil {
		return fmt.Errorf("new router: %w", err)
	}

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.logger.Info("http server listening", "addr", a.cfg.HTTPAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
