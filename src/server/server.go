package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/widodu77/knowledge-graph/src/services/graph"
	syncservice "github.com/widodu77/knowledge-graph/src/services/sync"
)

// StorePinger verifica a saúde das duas pontas do pipeline.
type StorePinger interface {
	PingSource(ctx context.Context) error
	PingGraph(ctx context.Context) error
}

// Server representa o servidor HTTP da API
type Server struct {
	logger       *slog.Logger
	server       *http.Server
	mux          *http.ServeMux
	port         int
	syncService  *syncservice.SyncService
	graphService *graph.GraphService
	pinger       StorePinger
}

// NewServer cria uma nova instância do servidor
func NewServer(
	logger *slog.Logger,
	port int,
	syncService *syncservice.SyncService,
	graphService *graph.GraphService,
	pinger StorePinger,
) *Server {
	server := &Server{
		mux:          http.NewServeMux(),
		port:         port,
		logger:       logger,
		syncService:  syncService,
		graphService: graphService,
		pinger:       pinger,
	}

	server.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.mux,
		// Um run completo é síncrono no POST; o write timeout precisa cobrir.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	server.mux.HandleFunc("GET /", server.Root)
	server.mux.HandleFunc("GET /health", server.Health)
	server.mux.HandleFunc("POST /v1/sync/run", server.RunSync)
	server.mux.HandleFunc("GET /v1/sync/report", server.GetSyncReport)
	server.mux.HandleFunc("GET /v1/graph/counts", server.GetGraphCounts)
	server.mux.HandleFunc("GET /v1/customers/{id}/purchases", server.GetCustomerPurchases)
	server.mux.HandleFunc("GET /v1/products/{id}/co-occurrence", server.GetProductCoOccurrence)

	return server
}

// Start inicia o servidor HTTP
func (s *Server) Start() error {
	s.logger.Info("Server started", "port", s.port)

	return s.server.ListenAndServe()
}

// Shutdown encerra o servidor HTTP de forma graciosa
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
