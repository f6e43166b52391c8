package server

import (
	"errors"
	"net/http"

	"github.com/widodu77/knowledge-graph/src/domain"
)

// RunSync dispara um run completo de forma síncrona e devolve o relatório.
// Um run já ativo resulta em 409: dois writers simultâneos fariam upserts da
// mesma chave disputarem de forma não determinística.
func (s *Server) RunSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.syncService.RunSync(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSyncAlreadyRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		s.logger.Error("Sync run failed", "error", err)

		if report != nil {
			// O run falhou no meio; o relatório parcial ainda interessa.
			s.writeJSON(w, http.StatusInternalServerError, report)
			return
		}
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// GetSyncReport devolve o relatório do último run finalizado.
func (s *Server) GetSyncReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.syncService.LastReport()
	if !ok {
		http.Error(w, "no sync run has completed yet", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}
