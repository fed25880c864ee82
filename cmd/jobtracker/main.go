package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellow-star/job-app-tracker/internal/config"
	"github.com/hellow-star/job-app-tracker/internal/httpapi"
	"github.com/hellow-star/job-app-tracker/internal/store/postgres"
	"github.com/hellow-star/job-app-tracker/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("jobtracker")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)
	handler := httpapi.NewHandler(st, httpapi.Options{
		SessionTTL:    time.Duration(cfg.SessionTTLHours) * time.Hour,
		SecureCookies: cfg.SecureCookies,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:      cfg.RateLimitPerMinute,
		IPBurst:          cfg.RateLimitBurst,
		SessionPerMinute: cfg.UserRateLimitPerMinute,
		SessionBurst:     cfg.UserRateLimitBurst,
	})

	routes := httpapi.AuthMiddleware(st, handler.Routes())
	routes = limiter.Middleware(routes)
	routes = httpapi.CORSMiddleware(cfg.ClientOrigins, routes)
	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(routes), "jobtracker")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("jobtracker listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
