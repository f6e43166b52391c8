package server

import (
	"net/http"
	"strconv"

	"github.com/widodu77/knowledge-graph/src/domain"
)

func (s *Server) GetCustomerPurchases(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid customer ID format", http.StatusBadRequest)
		return
	}

	purchases, err := s.graphService.GetCustomerPurchases(r.Context(), customerID)
	if err != nil {
		s.logger.Error("Failed to get customer purchases", "customer_id", customerID, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, purchases)
}

func (s *Server) GetProductCoOccurrence(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product ID format", http.StatusBadRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	items, err := s.graphService.GetProductCoOccurrence(r.Context(), productID, limit)
	if err != nil {
		s.logger.Error("Failed to get product co-occurrence", "product_id", productID, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, items)
}

// GetGraphCounts expõe a verificação pós-carga: nós por label e total de
// relacionamentos.
func (s *Server) GetGraphCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.graphService.Counts(r.Context())
	if err != nil {
		s.logger.Error("Failed to get graph counts", "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, counts)
}
