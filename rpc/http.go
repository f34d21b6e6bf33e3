package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/auth"
	"nftmarket/crypto"
	"nftmarket/native/market"
	"nftmarket/native/nft"
	"nftmarket/observability"
	"nftmarket/observability/logging"
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
)

// Server exposes the registry and marketplace engines over JSON-RPC 2.0.
type Server struct {
	registry    *nft.Engine
	marketplace *market.Engine
	authToken   string
	logger      *slog.Logger
}

// NewServer wires the engines into an RPC server. The token guards the
// admin-gated methods; an empty token disables them entirely.
func NewServer(registry *nft.Engine, marketplace *market.Engine, authToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:    registry,
		marketplace: marketplace,
		authToken:   strings.TrimSpace(authToken),
		logger:      logger,
	}
}

// Router builds the HTTP mux: JSON-RPC on POST /, liveness on /healthz, and
// the prometheus scrape endpoint on /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "address", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// requestID tags every request with a uuid so log lines can be correlated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError translates engine sentinel errors into JSON-RPC error
// objects. Authorization failures map to -32001, everything else surfaces as
// an invalid-params failure carrying the engine message.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, nft.ErrUnauthorized) || errors.Is(err, market.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, id, codeUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, nft.ErrNilState) || errors.Is(err, market.ErrNilState) || errors.Is(err, market.ErrNilPayments):
		writeError(w, http.StatusInternalServerError, id, codeServerError, "engine not available", err.Error())
	default:
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	}
}

// handle parses the envelope and routes to the per-method handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(ww, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(ww, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(ww, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(ww, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(ww, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	defer func() {
		module, _, _ := strings.Cut(req.Method, "_")
		observability.ModuleMetrics().Observe(module, req.Method, ww.Status(), time.Since(start))
		s.logger.Debug("rpc request",
			"method", req.Method,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", ww.Header().Get("X-Request-Id"),
		)
	}()

	switch req.Method {
	case "nft_initialize":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(ww, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleInitialize(ww, r, req)
	case "nft_mint":
		s.handleMint(ww, r, req)
	case "nft_transfer":
		s.handleTransfer(ww, r, req)
	case "nft_approve":
		s.handleApprove(ww, r, req)
	case "nft_isApproved":
		s.handleIsApproved(ww, r, req)
	case "nft_ownerOf":
		s.handleOwnerOf(ww, r, req)
	case "nft_getToken":
		s.handleGetToken(ww, r, req)
	case "nft_getTokensByOwner":
		s.handleGetTokensByOwner(ww, r, req)
	case "nft_getTokenURI":
		s.handleGetTokenURI(ww, r, req)
	case "nft_getMetadata":
		s.handleGetMetadata(ww, r, req)
	case "nft_getTokenCount":
		s.handleGetTokenCount(ww, r, req)
	case "nft_getAdmin":
		s.handleGetAdmin(ww, r, req)
	case "nft_getFeeConfig":
		s.handleGetFeeConfig(ww, r, req)
	case "nft_isAdmin":
		s.handleIsAdmin(ww, r, req)
	case "nft_updateRoyalty":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(ww, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateRoyalty(ww, r, req)
	case "nft_updatePlatformFee":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(ww, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdatePlatformFee(ww, r, req)
	case "nft_updateAdmin":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(ww, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateAdmin(ww, r, req)
	case "market_listToken":
		s.handleMarketList(ww, r, req)
	case "market_cancelListing":
		s.handleMarketCancel(ww, r, req)
	case "market_buyToken":
		s.handleMarketBuy(ww, r, req)
	case "market_isListed":
		s.handleMarketIsListed(ww, r, req)
	case "market_getListing":
		s.handleMarketGetListing(ww, r, req)
	case "market_getListings":
		s.handleMarketGetListings(ww, r, req)
	default:
		writeError(ww, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// requireAuth enforces the bearer token that guards admin methods.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		s.logger.Warn("rejected RPC credentials", logging.MaskField("token", token))
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func singleParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func decodeBech32(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Array(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.NFTPrefix, addr[:]).String()
}

// authorizeSigned recovers the caller identity from the signature over the
// method digest and grants it on the request context. The engines then verify
// that the acting address matches the recovered signer.
func authorizeSigned(r *http.Request, method string, payload []byte, signature string) (context.Context, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	digest := crypto.CallDigest(method, payload)
	signer, err := crypto.RecoverSigner(digest, sig)
	if err != nil {
		return nil, err
	}
	return auth.WithAuthorized(r.Context(), signer.Array()), nil
}
