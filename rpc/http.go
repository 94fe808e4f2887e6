package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trustrent/core"
	"trustrent/observability"
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
	codeRateLimited    = -32020

	codeForbidden         = -32030
	codeInvalidState      = -32031
	codeOverlap           = -32032
	codeInsufficientFunds = -32033
	codeExceedEscrow      = -32034
	codeNothingToRelease  = -32035
	codeNotFound          = -32036
	codePaused            = -32037
	codeInFlight          = -32038
)

// Config tunes the RPC server.
type Config struct {
	Auth               AuthConfig
	RateLimitPerSecond float64
	RateLimitBurst     int
	TrustProxyHeaders  bool
	TrustedProxies     []string
	// IdempotencyPath is the bbolt file used for Idempotency-Key replays.
	// Empty disables replays.
	IdempotencyPath   string
	IdempotencyTTL    time.Duration
	Tracing           bool
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
}

type Server struct {
	node        *core.Node
	cfg         Config
	logger      *slog.Logger
	auth        *authenticator
	limiter     *rateLimiter
	idempotency *idempotencyStore
	now         func() time.Time
}

// NewServer wires a JSON-RPC server for node.
func NewServer(node *core.Node, cfg Config, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger,
		auth:    newAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		now:     time.Now,
	}
	if strings.TrimSpace(cfg.IdempotencyPath) != "" {
		store, err := openIdempotencyStore(cfg.IdempotencyPath, cfg.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("rpc: open idempotency store: %w", err)
		}
		s.idempotency = store
	}
	return s, nil
}

// Close releases resources held by the server.
func (s *Server) Close() error {
	if s == nil || s.idempotency == nil {
		return nil
	}
	return s.idempotency.Close()
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Post("/", s.handle)
	router.Get("/ws", s.handleEventsWS)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	if s.cfg.Tracing {
		return otelhttp.NewHandler(router, "trustrent.rpc")
	}
	return router
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	readHeader := s.cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeader,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) httpStatus() int {
	if e == nil || e.status == 0 {
		return http.StatusBadRequest
	}
	return e.status
}

func newError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

func invalidParams(message string) *RPCError {
	return newError(http.StatusBadRequest, codeInvalidParams, message, nil)
}

func encodeResponse(id json.RawMessage, result interface{}, rpcErr *RPCError) []byte {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	body, err := json.Marshal(resp)
	if err != nil {
		body, _ = json.Marshal(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: codeServerError, Message: "failed to encode response"}})
	}
	return append(body, '\n')
}

func writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *RPCError) {
	w.WriteHeader(rpcErr.httpStatus())
	_, _ = w.Write(encodeResponse(id, nil, rpcErr))
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	_, _ = w.Write(encodeResponse(id, result, nil))
}

func methodModule(method string) string {
	if module, _, ok := strings.Cut(method, "_"); ok {
		return module
	}
	return "unknown"
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.limiter.allow(s.clientSource(r), s.now()) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
		writeError(w, nil, newError(http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded", nil))
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, nil, newError(status, codeInvalidRequest, message, err.Error()))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, nil, newError(http.StatusBadRequest, codeInvalidRequest, "request body required", nil))
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, nil, newError(http.StatusBadRequest, codeParseError, "invalid JSON payload", err.Error()))
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, req.ID, newError(http.StatusBadRequest, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC))
		return
	}
	if req.Method == "" {
		writeError(w, req.ID, newError(http.StatusBadRequest, codeInvalidRequest, "method required", nil))
		return
	}

	code := 0
	defer func() {
		observability.ModuleMetrics().Observe(methodModule(req.Method), req.Method, code, time.Since(started))
	}()

	if m, ok := queryMethods[req.Method]; ok {
		result, rpcErr := m(s, req)
		if rpcErr != nil {
			code = rpcErr.Code
			writeError(w, req.ID, rpcErr)
			return
		}
		writeResult(w, req.ID, result)
		return
	}
	m, ok := mutatingMethods[req.Method]
	if !ok {
		code = codeMethodNotFound
		writeError(w, req.ID, newError(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method))
		return
	}
	caller, rpcErr := s.auth.caller(r)
	if rpcErr != nil {
		code = rpcErr.Code
		writeError(w, req.ID, rpcErr)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(headerIdempotency))
	var replayKey string
	if idemKey != "" && s.idempotency != nil {
		key := idempotencyKey(caller, req.Method, idemKey)
		record, found, err := s.idempotency.reserve(key, s.now())
		switch {
		case errors.Is(err, errIdempotencyInFlight):
			code = codeInFlight
			writeError(w, req.ID, newError(http.StatusConflict, codeInFlight, err.Error(), nil))
			return
		case err != nil:
			s.logger.Warn("reserve idempotency key", slog.Any("error", err))
		case found:
			w.Header().Set("X-Idempotency-Cache", "hit")
			w.WriteHeader(record.StatusCode)
			_, _ = w.Write(replaceID(record.Body, req.ID))
			return
		default:
			replayKey = key
		}
	}

	result, rpcErr := m(s, caller, req)
	status := http.StatusOK
	var payload []byte
	if rpcErr != nil {
		code = rpcErr.Code
		status = rpcErr.httpStatus()
		payload = encodeResponse(req.ID, nil, rpcErr)
	} else {
		payload = encodeResponse(req.ID, result, nil)
	}
	if replayKey != "" {
		s.finishIdempotent(replayKey, status, payload)
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_, _ = w.Write(payload)
}

// finishIdempotent stores the outcome for key, or releases the reservation
// when the outcome is a server error that a retry may not repeat.
func (s *Server) finishIdempotent(key string, status int, payload []byte) {
	if status >= http.StatusInternalServerError {
		if err := s.idempotency.release(key); err != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", err))
		}
		return
	}
	if err := s.idempotency.put(key, idempotencyRecord{
		StatusCode: status,
		Body:       payload,
		StoredAt:   s.now(),
	}); err != nil {
		s.logger.Warn("persist idempotency record", slog.Any("error", err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	head, err := s.node.JournalHead()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "journalHead": head, "paused": s.node.Paused()})
}
