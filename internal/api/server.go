// Package api is the HTTP and WebSocket shell around the matching
// engine: it normalizes incoming records, serializes them through the
// engine one at a time, and exposes book and trade snapshots.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"orodex/internal/datafile"
	"orodex/internal/match"
	"orodex/internal/orderbook"
	"orodex/internal/store"
)

type Config struct {
	Pair       string
	OrdersPath string // bulk order file consumed by /api/process-orders
	OutputDir  string // where orderbook.json and trades.json are written
	Store      *store.Store
	Logger     *logrus.Logger
}

type Server struct {
	cfg     Config
	engine  *match.Engine
	log     *logrus.Logger
	hub     *Hub
	limiter *RateLimiter

	upgrader    websocket.Upgrader
	corsOrigins []string

	// mu serializes matching: the book is shared mutable state with no
	// internal locking, so exactly one order is matched at a time and
	// the working copy is swapped in under the same lock.
	mu     sync.Mutex
	book   *orderbook.OrderBook
	trades []match.Trade
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &Server{
		cfg:     cfg,
		engine:  match.NewEngine(),
		log:     cfg.Logger,
		hub:     NewHub(),
		limiter: NewRateLimiter(300, time.Minute),
		book:    orderbook.New(cfg.Pair),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// SetCORSOrigins restricts cross-origin access. An empty list allows
// all origins (development default).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// SeedTrades preloads trade history (from the store) so GET /api/trades
// is continuous across restarts.
func (s *Server) SeedTrades(trades []match.Trade) {
	s.mu.Lock()
	s.trades = append(s.trades, trades...)
	s.mu.Unlock()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/orderbook", s.getOrderBook)
		r.Get("/trades", s.getTrades)
		r.With(s.limiter.Middleware).Post("/orders", s.submitOrder)
		r.With(s.limiter.Middleware).Post("/process-orders", s.processOrders)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Trading Engine is Running"))
}

func (s *Server) getOrderBook(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.book.Snapshot()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	trades := make([]match.Trade, len(s.trades))
	copy(trades, s.trades)
	s.mu.Unlock()

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(trades) {
			trades = trades[len(trades)-n:]
		}
	}

	writeJSON(w, http.StatusOK, datafile.TradeCollection{Trades: trades})
}

// submitOrder ingests one raw order record: normalize, match against
// the current book, swap the updated book in, persist and broadcast the
// trades.
func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	var rec orderbook.RawOrderRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := orderbook.Normalize(rec)
	if err != nil {
		var verr *orderbook.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process order")
		return
	}

	s.mu.Lock()
	res := s.engine.Match(order, s.book)
	s.book = res.Book
	s.trades = append(s.trades, res.Trades...)
	snap := s.book.Snapshot()
	s.mu.Unlock()

	s.persistTrades(res.Trades)
	s.broadcast(snap, res.Trades)

	trades := res.Trades
	if trades == nil {
		trades = []match.Trade{}
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"trades":    trades,
		"orderBook": snap,
	})
}

// ProcessSummary reports what a bulk processing pass did.
type ProcessSummary struct {
	Processed  int
	Trades     int
	Rejected   int
	BookPath   string
	TradesPath string
}

// ProcessOrdersFile runs the whole configured order file through the
// engine from an empty book, replaces the current state, and writes the
// orderbook.json / trades.json output files. Called from the HTTP
// route and at startup when bulk processing is requested.
func (s *Server) ProcessOrdersFile() (ProcessSummary, error) {
	records, err := datafile.ReadOrders(s.cfg.OrdersPath)
	if err != nil {
		return ProcessSummary{}, err
	}

	book, trades, rejects := s.engine.ProcessAll(s.cfg.Pair, records)
	for _, rej := range rejects {
		s.log.WithFields(logrus.Fields{
			"index":    rej.Index,
			"order_id": rej.Record.OrderID,
		}).WithError(rej.Err).Warn("rejected order record")
	}

	s.mu.Lock()
	s.book = book
	s.trades = trades
	snap := s.book.Snapshot()
	s.mu.Unlock()

	summary := ProcessSummary{
		Processed:  len(records),
		Trades:     len(trades),
		Rejected:   len(rejects),
		BookPath:   filepath.Join(s.cfg.OutputDir, "orderbook.json"),
		TradesPath: filepath.Join(s.cfg.OutputDir, "trades.json"),
	}
	if err := datafile.WriteOrderBook(snap, summary.BookPath); err != nil {
		return summary, err
	}
	if err := datafile.WriteTrades(trades, summary.TradesPath); err != nil {
		return summary, err
	}

	s.persistTrades(trades)
	if s.cfg.Store != nil {
		err := s.cfg.Store.RecordRun(store.RunRecord{
			Source:          s.cfg.OrdersPath,
			OrdersSeen:      len(records),
			TradesMade:      len(trades),
			RecordsRejected: len(rejects),
		})
		if err != nil {
			s.log.WithError(err).Warn("failed to record processing run")
		}
	}
	s.broadcast(snap, nil)

	s.log.WithFields(logrus.Fields{
		"orders":   summary.Processed,
		"trades":   summary.Trades,
		"rejected": summary.Rejected,
	}).Info("processed orders file")

	return summary, nil
}

func (s *Server) processOrders(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ProcessOrdersFile()
	if err != nil {
		s.log.WithError(err).Error("failed to process orders file")
		writeError(w, http.StatusInternalServerError, "failed to process orders file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "Orders processed successfully",
		"orderBookPath": summary.BookPath,
		"tradesPath":    summary.TradesPath,
		"processed":     summary.Processed,
		"rejected":      summary.Rejected,
	})
}

// persistTrades writes trades to the store. Persistence is best-effort:
// a storage fault is logged, never allowed to disturb book state.
func (s *Server) persistTrades(trades []match.Trade) {
	if s.cfg.Store == nil || len(trades) == 0 {
		return
	}
	if err := s.cfg.Store.SaveTrades(trades); err != nil {
		s.log.WithError(err).Warn("failed to persist trades")
	}
}

func (s *Server) broadcast(snap orderbook.BookSnapshot, trades []match.Trade) {
	s.hub.Broadcast(map[string]interface{}{"type": "book", "book": snap})
	for _, trade := range trades {
		s.hub.Broadcast(map[string]interface{}{"type": "trade", "trade": trade})
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.Register(client)

	s.mu.Lock()
	snap := s.book.Snapshot()
	s.mu.Unlock()
	data, _ := json.Marshal(map[string]interface{}{"type": "book", "book": snap})
	select {
	case client.send <- data:
	default:
	}

	go client.WritePump()
	go client.ReadPump()
}

// Shutdown stops the hub and rate limiter goroutines.
func (s *Server) Shutdown() {
	s.limiter.Stop()
	s.hub.Stop()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
