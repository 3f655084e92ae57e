package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	apiconfig "financial_dashboard/pkg/api/config"
	apipipeline "financial_dashboard/pkg/api/pipeline"
	"financial_dashboard/pkg/core/bootstrap"
	"financial_dashboard/pkg/core/logging"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, bootstrap.Options{ConfigPath: os.Getenv("PIPELINE_CONFIG")})
	if err != nil {
		startupLog := logging.New("info", true)
		startupLog.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()
	log := app.Log

	router := apipipeline.NewRouter(apipipeline.NewHandler(app.Pipeline, logging.Component(log, "api")))
	apiconfig.NewHandler(app.Agents, logging.Component(log, "api")).Register(router)

	srv := &http.Server{
		Addr:              app.Config.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// deep validation alone may take its full timeout
		WriteTimeout: app.Config.DeepValidation.Timeout() + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().
		Str("addr", srv.Addr).
		Strs("routes", []string{
			"GET  /api/health",
			"POST /api/pipeline/run",
			"POST /api/projection",
			"GET  /api/charts",
			"GET  /api/fields",
			"GET  /api/overrides/{client}",
			"PUT  /api/overrides/{client}",
			"GET  /api/config",
			"POST /api/config/switch",
		}).
		Msg("API server starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
		app.Close()
		os.Exit(1)
	}
}
