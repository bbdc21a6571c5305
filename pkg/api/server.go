package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/avykov/simex/pkg/book"
	"github.com/avykov/simex/pkg/platform"
	"github.com/avykov/simex/pkg/sched"
)

const defaultTradeLimit = 50

// Server exposes the platform and scheduler over REST, WebSocket and
// Prometheus.
type Server struct {
	platform *platform.Platform
	sched    *sched.Scheduler
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
	httpSrv  *http.Server
}

func NewServer(p *platform.Platform, s *sched.Scheduler, log *zap.SugaredLogger) *Server {
	srv := &Server{
		platform: p,
		sched:    s,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
	}
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{symbol}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{symbol}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/traders/{address}", s.handleGetTrader).Methods("GET")
	api.HandleFunc("/traders/{address}/orders", s.handleGetOrders).Methods("GET")

	api.HandleFunc("/scheduler", s.handleGetScheduler).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	reg := prometheus.NewRegistry()
	reg.MustRegister(newCollector(s.platform, s.sched))
	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// Start runs the hub, bridges every market feed onto the hub and serves
// HTTP until Shutdown.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	for _, symbol := range s.platform.Symbols() {
		s.watchMarket(symbol)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.httpSrv = &http.Server{Addr: addr, Handler: c.Handler(s.router)}

	s.log.Infow("api_listening", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// watchMarket forwards a market's change feed to subscribed clients.
func (s *Server) watchMarket(symbol string) {
	b, err := s.platform.Book(symbol)
	if err != nil {
		s.log.Errorw("watch_market_failed", "symbol", symbol, "err", err)
		return
	}
	ch, _ := b.Feed().Subscribe(256)
	go func() {
		for c := range ch {
			s.hub.BroadcastToChannel("changes:"+symbol, ChangeUpdate{
				Type:      "change",
				Symbol:    symbol,
				Side:      c.Side.String(),
				Wallet:    c.Wallet,
				Price:     c.Price,
				Diff:      c.Diff,
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}()
}

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	infos := make([]MarketInfo, 0)
	for _, symbol := range s.platform.Symbols() {
		info, err := s.marketInfo(symbol)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	respondJSON(w, infos)
}

func (s *Server) marketInfo(symbol string) (MarketInfo, error) {
	m, err := s.platform.Market(symbol)
	if err != nil {
		return MarketInfo{}, err
	}
	b, err := s.platform.Book(symbol)
	if err != nil {
		return MarketInfo{}, err
	}
	return MarketInfo{
		Symbol:      m.Symbol,
		Supply:      m.Supply,
		Circulating: m.Circulating,
		Price:       b.Price(),
		CreatedAt:   m.CreatedAt,
	}, nil
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	info, err := s.marketInfo(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}
	respondJSON(w, info)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	b, err := s.platform.Book(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}
	respondJSON(w, BookSnapshot{
		Symbol:    symbol,
		Bids:      b.Bids(),
		Asks:      b.Asks(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	b, err := s.platform.Book(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}
	respondJSON(w, map[string]interface{}{"symbol": symbol, "price": b.Price()})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	trades, err := s.platform.RecentTrades(symbol, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "trade lookup failed", err.Error())
		return
	}
	respondJSON(w, trades)
}

func (s *Server) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	bal, err := s.platform.Balance(addr)
	if err != nil {
		respondError(w, http.StatusNotFound, "account not found", err.Error())
		return
	}
	respondJSON(w, TraderInfo{Address: addr, Balance: bal})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	orders := make(map[string][]book.RestingOrder)
	for _, symbol := range s.platform.Symbols() {
		b, err := s.platform.Book(symbol)
		if err != nil {
			continue
		}
		buys, sells := b.OrdersFor(addr)
		if len(buys)+len(sells) > 0 {
			orders[symbol] = append(buys, sells...)
		}
	}
	respondJSON(w, orders)
}

func (s *Server) handleGetScheduler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.sched.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: detail})
}
