// Package transport implements the daemon's external-facing adapters: an
// HTTP POST endpoint and a WebSocket stream sharing the same
// protocol.Dispatcher core, plus a GET /health probe.
package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
	"github.com/archmcp/mcpd/pkg/logging"
	"github.com/archmcp/mcpd/pkg/protocol"
)

// Server wires the protocol dispatcher to HTTP and WebSocket adapters.
type Server struct {
	dispatcher *protocol.Dispatcher
	session    *protocol.Session
	registry   pluginNameLister
	logger     logging.Logger
	version    string
	startedAt  time.Time
}

// pluginNameLister is the minimal registry surface /health needs.
type pluginNameLister interface {
	ListPlugins() []string
}

// NewServer builds a Server over dispatcher, sharing session across every
// connection: session state is process-wide, not per-connection.
func NewServer(dispatcher *protocol.Dispatcher, session *protocol.Session, registry pluginNameLister, version string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.New(nil, nil)
	}
	return &Server{
		dispatcher: dispatcher,
		session:    session,
		registry:   registry,
		logger:     logger,
		version:    version,
		startedAt:  time.Now(),
	}
}

// Handler builds the *http.ServeMux serving /mcp, /health, and /mcp/ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/mcp/ws", s.handleWebSocket)
	return mux
}

func withCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeResponse(w, protocol.NewErrorResponseFromDaemonError(nil, daemonerrors.InvalidRequest("POST required")))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeResponse(w, protocol.NewErrorResponseFromDaemonError(nil, daemonerrors.ParseError(err.Error())))
		return
	}

	req, err := protocol.DecodeRequest(body)
	if err != nil {
		writeResponse(w, protocol.NewErrorResponseFromDaemonError(nil, daemonerrors.ParseError(err.Error())))
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), s.session, req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Plugins   []string  `json:"plugins"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	w.Header().Set("Content-Type", "application/json")

	var plugins []string
	if s.registry != nil {
		plugins = s.registry.ListPlugins()
	}

	resp := healthResponse{
		Status:    "healthy",
		Version:   s.version,
		Timestamp: time.Now(),
		Plugins:   plugins,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
