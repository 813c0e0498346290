package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/auth"
	"github.com/saharat-dev/coffee-shop-backend/internal/config"
	"github.com/saharat-dev/coffee-shop-backend/internal/db"
	"github.com/saharat-dev/coffee-shop-backend/internal/handler"
	"github.com/saharat-dev/coffee-shop-backend/internal/inventory"
	"github.com/saharat-dev/coffee-shop-backend/internal/order"
	"github.com/saharat-dev/coffee-shop-backend/internal/product"
	"github.com/saharat-dev/coffee-shop-backend/internal/ratelimit"
	"github.com/saharat-dev/coffee-shop-backend/internal/stats"
	"github.com/saharat-dev/coffee-shop-backend/internal/transport"
	"github.com/saharat-dev/coffee-shop-backend/internal/user"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "coffee-shop-backend").Logger()

	log.Info().Msg("Coffee shop backend starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	tokens := auth.NewTokenManager(cfg.App.JWTSecret, cfg.App.TokenTTL)

	userRepo := user.NewRepository(dbConn.Pool)
	userSvc := user.NewService(userRepo, tokens)

	productRepo := product.NewRepository(dbConn.Pool)
	productSvc := product.NewService(productRepo)

	orderRepo := order.NewRepository(dbConn.Pool, inventory.NewLedger())
	orderSvc := order.NewService(orderRepo, cfg.App.RestockOnCancel)

	statsSvc := stats.NewService(stats.NewRepository(dbConn.Pool))

	router := transport.NewRouter(transport.Deps{
		Auth:        auth.NewMiddleware(tokens),
		AuthHandler: handler.NewAuthHandler(userSvc),
		Products:    handler.NewProductHandler(productSvc),
		Orders:      handler.NewOrderHandler(orderSvc),
		Stats:       handler.NewStatsHandler(statsSvc),
		AuthLimiter: ratelimit.NewMemoryStore(cfg.App.RateLimitMax, cfg.App.RateLimitWindow, nil),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
