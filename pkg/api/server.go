package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/frontierx/nftmarket/pkg/market"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine *market.Engine
	log    *zap.Logger
	router *mux.Router
	hub    *Hub // WebSocket hub
}

// NewServer creates a new API server wired to the settlement engine.
// Settled trades are pushed to WebSocket clients on the "trades"
// channel.
func NewServer(engine *market.Engine, log *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		log:    log,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}

	engine.SetTradeFeed(func(t *market.Trade) {
		s.hub.BroadcastToChannel("trades", t)
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Trade endpoints
	api.HandleFunc("/trades", s.handleSubmitTrade).Methods("POST")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders/hash", s.handleHashOrder).Methods("POST")
	api.HandleFunc("/orders/approve", s.handleApproveOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}/fill", s.handleGetOrderFill).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	// Start WebSocket hub
	go s.hub.Run()

	// CORS configuration
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	one, err := req.One.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid first order", err.Error())
		return
	}
	two, err := req.Two.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid second order", err.Error())
		return
	}
	sigOne, err := parseBytes(req.SigOne, "sigOne")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	sigTwo, err := parseBytes(req.SigTwo, "sigTwo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	callOne, err := req.CallOne.ToCall()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid first call", err.Error())
		return
	}
	callTwo, err := req.CallTwo.ToCall()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid second call", err.Error())
		return
	}
	value, err := parseBig(req.Value, "value")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	var metadata [32]byte
	if req.Metadata != "" {
		mb, err := parseBytes(req.Metadata, "metadata")
		if err != nil || len(mb) != 32 {
			respondError(w, http.StatusBadRequest, "invalid metadata", "expected 32-byte hex")
			return
		}
		copy(metadata[:], mb)
	}

	trade, err := s.engine.TradeNFT(caller, one, sigOne, callOne, two, sigTwo, callTwo, value, metadata)
	if err != nil {
		respondError(w, statusForError(err), "trade rejected", err.Error())
		return
	}

	respondJSON(w, trade)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			respondError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = n
	}

	trades, err := s.engine.RecentTrades(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load trades", err.Error())
		return
	}
	if trades == nil {
		trades = []*market.Trade{}
	}

	respondJSON(w, trades)
}

func (s *Server) handleHashOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	order, err := req.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	hash, err := s.engine.HashOrder(order)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash order", err.Error())
		return
	}

	respondJSON(w, ApproveResponse{Hash: hash.Hex()})
}

func (s *Server) handleApproveOrder(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, err := req.Order.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	hash, err := s.engine.ApproveOrder(caller, order)
	if err != nil {
		respondError(w, statusForError(err), "approval rejected", err.Error())
		return
	}

	s.log.Info("order approved", zap.String("hash", hash.Hex()), zap.String("maker", order.Maker.Hex()))
	respondJSON(w, ApproveResponse{Hash: hash.Hex()})
}

func (s *Server) handleGetOrderFill(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hashStr := vars["hash"]

	hashBytes, err := parseBytes(hashStr, "hash")
	if err != nil || len(hashBytes) != 32 {
		respondError(w, http.StatusBadRequest, "invalid order hash", "")
		return
	}
	hash := common.BytesToHash(hashBytes)

	fill, err := s.engine.OrderFill(hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load fill", err.Error())
		return
	}

	respondJSON(w, FillResponse{Hash: hash.Hex(), Fill: fill})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UnixMilli(),
	})
}

// statusForError maps settlement failures to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, market.ErrFirstOrderAuthorization),
		errors.Is(err, market.ErrSecondOrderAuthorization):
		return http.StatusForbidden
	case errors.Is(err, market.ErrOrderExpired),
		errors.Is(err, market.ErrCapacityExceeded),
		errors.Is(err, market.ErrStaticCheckFailed),
		errors.Is(err, market.ErrPriceMismatch),
		errors.Is(err, market.ErrIncorrectPaymentAmount),
		errors.Is(err, market.ErrPaymentTokenNotWhitelisted),
		errors.Is(err, market.ErrUnknownRegistry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, market.ErrFirstCallFailed),
		errors.Is(err, market.ErrSecondCallFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
