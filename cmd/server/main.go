package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bmartins/loja-online/internal/config"
	"github.com/bmartins/loja-online/internal/es"
	"github.com/bmartins/loja-online/internal/logging"
	"github.com/bmartins/loja-online/internal/mykafka"
	"github.com/bmartins/loja-online/internal/service/notification"
	transport "github.com/bmartins/loja-online/internal/transport/http"
)

const productIndex = "products"

var eventTopics = []string{
	"user_events",
	"store_events",
	"product_events",
	"cart_events",
	"order_events",
	"stock_events",
	"cash_events",
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.LOG_LEVEL)
	slog.SetDefault(log)

	db, err := config.InitDB()
	if err != nil {
		log.Error("falha ao iniciar o banco", "error", err)
		os.Exit(1)
	}

	var producer *mykafka.Producer
	if cfg.KAFKA_ADDRESS != "" {
		producer, err = mykafka.NewProducer([]string{cfg.KAFKA_ADDRESS}, eventTopics)
		if err != nil {
			log.Error("falha ao conectar no kafka", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
	} else {
		log.Warn("KAFKA_ADDRESS não configurado, eventos desativados")
	}

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Warn("elasticsearch indisponível, busca desativada", "error", err)
		esClient = nil
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), log)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	transport.Register(e, transport.Deps{
		DB:            db,
		ES:            esClient,
		ESIndex:       productIndex,
		Producer:      producer,
		Notifications: notification.NewService(db, log),
		JWTSecret:     []byte(cfg.JWT_SECRET),
		RefreshSecret: []byte(cfg.REFRESH_SECRET),
		AdminEmail:    cfg.ADMIN_EMAIL,
	})

	server := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("servidor iniciado", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("servidor encerrou com erro", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("falha no shutdown", "error", err)
	}
	log.Info("servidor finalizado")
}
