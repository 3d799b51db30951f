package api

import (
	"net/http"

	"github.com/safar/go-storefront/internal/database"
)

// handleGetOrder serves the confirmation screen. Orders placed by another
// session answer 404, the same as ids that do not exist.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a positive integer")
		return
	}
	if !sessionFrom(r.Context()).ownsOrder(id) {
		s.respondDomainError(w, r, database.ErrOrderNotFound)
		return
	}

	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// handleListOrders lists the orders placed by the calling session, newest first.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListOrders(r.Context(), sessionFrom(r.Context()).orderIDs())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}
