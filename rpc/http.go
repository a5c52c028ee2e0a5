package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"nftmarket/gateway/middleware"
	"nftmarket/native/marketplace"
	"nftmarket/observability/metrics"
	"nftmarket/services/salesindex"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001

	codeMarketValidation    = -32030
	codeMarketAuthorization = -32031
	codeMarketLifecycle     = -32032
	codeMarketProtocol      = -32033
)

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// callError is returned by method handlers to control the JSON-RPC error
// and HTTP status written back.
type callError struct {
	status  int
	code    int
	message string
	data    interface{}
}

func (e *callError) Error() string { return e.message }

func invalidParams(format string, args ...interface{}) error {
	return &callError{status: http.StatusBadRequest, code: codeInvalidParams, message: fmt.Sprintf(format, args...)}
}

// marketError maps an engine error onto a JSON-RPC error by category.
func marketError(err error) *callError {
	var ce *callError
	if errors.As(err, &ce) {
		return ce
	}
	category := marketplace.ErrorCategory(err)
	data := map[string]interface{}{"category": string(category)}
	var unknown *marketplace.UnrecognisedReplyError
	if errors.As(err, &unknown) {
		data["tag"] = unknown.Tag
	}
	switch category {
	case marketplace.CategoryValidation:
		return &callError{status: http.StatusBadRequest, code: codeMarketValidation, message: err.Error(), data: data}
	case marketplace.CategoryAuthorization:
		return &callError{status: http.StatusForbidden, code: codeMarketAuthorization, message: err.Error(), data: data}
	case marketplace.CategoryLifecycle:
		return &callError{status: http.StatusConflict, code: codeMarketLifecycle, message: err.Error(), data: data}
	case marketplace.CategoryProtocol:
		return &callError{status: http.StatusConflict, code: codeMarketProtocol, message: err.Error(), data: data}
	default:
		return &callError{status: http.StatusInternalServerError, code: codeServerError, message: "internal error", data: data}
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// SalesQuerier serves the sale history methods.
type SalesQuerier interface {
	Sales(ctx context.Context, f salesindex.Filter) ([]salesindex.Sale, error)
	Volume(ctx context.Context, collection, denom string) (*big.Int, int, error)
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Config wires the optional server collaborators.
type Config struct {
	Authenticator *middleware.Authenticator
	RateLimit     middleware.RateLimit
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Sales         SalesQuerier
	Hub           *Hub
	Logger        *slog.Logger
}

// Server exposes the marketplace engine over JSON-RPC 2.0 and streams
// engine events over websocket.
type Server struct {
	engine  *marketplace.Engine
	sales   SalesQuerier
	hub     *Hub
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	cors    middleware.CORSConfig
	logger  *slog.Logger
	metrics *metrics.RPCMetrics
	methods map[string]handlerFunc
}

// NewServer builds a server around engine.
func NewServer(engine *marketplace.Engine, cfg Config) *Server {
	s := &Server{
		engine:  engine,
		sales:   cfg.Sales,
		hub:     cfg.Hub,
		auth:    cfg.Authenticator,
		limiter: middleware.NewRateLimiter(cfg.RateLimit),
		obs:     cfg.Observability,
		cors:    cfg.CORS,
		logger:  cfg.Logger,
		metrics: metrics.RPC(),
	}
	if s.auth == nil {
		s.auth = middleware.NewAuthenticator(middleware.AuthConfig{}, cfg.Logger)
	}
	if s.obs == nil {
		s.obs = middleware.NewObservability(middleware.ObservabilityConfig{}, cfg.Logger)
	}
	if s.hub == nil {
		s.hub = NewHub(0)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.methods = s.marketMethods()
	if s.sales != nil {
		s.methods["sales_list"] = s.salesList
		s.methods["sales_volume"] = s.salesVolume
	}
	return s
}

// Hub returns the event hub subscribers read from.
func (s *Server) Hub() *Hub { return s.hub }

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.cors))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Group(func(api chi.Router) {
		api.Use(s.auth.Middleware)
		api.Use(s.limiter.Middleware)
		api.With(s.obs.Middleware("rpc")).Post("/", s.handle)
		api.With(s.obs.Middleware("events")).Get("/ws", s.handleEventStream)
		api.Route("/v1/collections/{collection}", func(c chi.Router) {
			c.Use(s.obs.Middleware("collections"))
			c.Get("/asks", s.handleListAsks)
			c.Get("/asks/{tokenID}", s.handleGetAsk)
			c.Get("/asks/{tokenID}/bids", s.handleListBids)
		})
	})
	return r
}

// handle is the JSON-RPC entry point.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	method, ok := s.methods[req.Method]
	if !ok {
		s.metrics.Observe(req.Method, codeMethodNotFound, time.Since(start))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	result, err := method(r.Context(), req.Params)
	if err != nil {
		ce := marketError(err)
		if ce.code == codeServerError {
			s.logger.Error("rpc method failed", "method", req.Method, "error", err)
		}
		s.metrics.Observe(req.Method, ce.code, time.Since(start))
		writeError(w, ce.status, req.ID, ce.code, ce.message, ce.data)
		return
	}
	s.metrics.Observe(req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

// decode unmarshals params into dst, rejecting unknown fields.
func decode(raw json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return invalidParams("params required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}

// caller resolves the acting address. With authentication on, the token
// subject wins and a conflicting declared sender is rejected.
func (s *Server) caller(ctx context.Context, declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if s.auth.Enabled() {
		subject, ok := middleware.SubjectFromContext(ctx)
		if !ok {
			return "", &callError{status: http.StatusUnauthorized, code: codeUnauthorized, message: "authentication required"}
		}
		if declared != "" && declared != subject {
			return "", &callError{status: http.StatusForbidden, code: codeUnauthorized, message: "sender does not match token subject"}
		}
		return subject, nil
	}
	if declared == "" {
		return "", invalidParams("sender required")
	}
	return declared, nil
}
