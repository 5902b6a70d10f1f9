package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"orodex/internal/api"
	"orodex/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load() // .env is optional

	port := flag.String("port", envOr("ORODEX_PORT", "3001"), "server port")
	dbPath := flag.String("db", envOr("ORODEX_DB", "orodex.db"), "SQLite database path")
	ordersPath := flag.String("orders", envOr("ORODEX_ORDERS", "data/orders.json"), "bulk orders input file")
	outputDir := flag.String("out", envOr("ORODEX_OUT", "output"), "output directory for orderbook.json and trades.json")
	pair := flag.String("pair", envOr("ORODEX_PAIR", "BTC/USDC"), "trading pair this book serves")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (empty = allow all for dev)")
	processAtStart := flag.Bool("process", false, "process the orders file at startup before serving")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	st, err := store.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}

	server := api.NewServer(api.Config{
		Pair:       *pair,
		OrdersPath: *ordersPath,
		OutputDir:  *outputDir,
		Store:      st,
		Logger:     log,
	})

	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.WithField("origins", origins).Info("CORS restricted")
	}

	// Carry persisted trade history across restarts so /api/trades
	// doesn't start empty.
	history, err := st.RecentTrades(500)
	if err != nil {
		log.WithError(err).Warn("failed to load trade history")
	} else if len(history) > 0 {
		server.SeedTrades(history)
		log.WithField("trades", len(history)).Info("loaded trade history")
	}

	if *processAtStart {
		summary, err := server.ProcessOrdersFile()
		if err != nil {
			log.WithError(err).Fatal("failed to process orders file")
		}
		log.WithFields(logrus.Fields{
			"orders":   summary.Processed,
			"trades":   summary.Trades,
			"rejected": summary.Rejected,
			"book":     summary.BookPath,
		}).Info("startup processing complete")
	}

	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: server.Router(),
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr": httpServer.Addr,
			"pair": *pair,
			"db":   *dbPath,
		}).Info("starting orodex server")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	if err := st.Close(); err != nil {
		log.WithError(err).Warn("database close error")
	}

	log.Info("shutdown complete")
}
