package api

import (
	"net/http"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

type lineView struct {
	models.CartLine
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartView struct {
	Lines        []lineView      `json:"lines"`
	Note         string          `json:"note"`
	Total        decimal.Decimal `json:"total"`
	TotalDisplay string          `json:"total_display"`
	ItemCount    int             `json:"item_count"`
	Badge        string          `json:"badge,omitempty"`
}

func newCartView(snap cart.Snapshot) cartView {
	view := cartView{
		Lines:        make([]lineView, 0, len(snap.Lines)),
		Note:         snap.Note,
		Total:        snap.Total(),
		TotalDisplay: "$" + checkout.FormatAmount(snap.Total()),
		ItemCount:    snap.ItemCount(),
	}
	for _, line := range snap.Lines {
		view.Lines = append(view.Lines, lineView{
			CartLine:  line,
			UnitPrice: line.EffectivePrice(),
			Subtotal:  line.Subtotal(),
		})
	}
	if !snap.IsEmpty() {
		view.Badge = "Ver Pedido (" + view.TotalDisplay + ")"
	}
	return view
}

// editCart applies edit to the session cart under the flow's lock, so a
// concurrent checkout start either sees the edit or rejects it.
func (s *Server) editCart(w http.ResponseWriter, r *http.Request, edit func(c *cart.Store)) {
	sess := sessionFrom(r.Context())
	if err := sess.Flow().EditCart(edit); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(sess.Cart.Snapshot()))
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	respondJSON(w, http.StatusOK, newCartView(sess.Cart.Snapshot()))
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.editCart(w, r, func(c *cart.Store) { c.AddOrIncrement(*product) })
}

func (s *Server) handleDecrementItem(w http.ResponseWriter, r *http.Request) {
	s.editLine(w, r, (*cart.Store).Decrement)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.editLine(w, r, (*cart.Store).Remove)
}

func (s *Server) editLine(w http.ResponseWriter, r *http.Request, edit func(*cart.Store, int64)) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}
	s.editCart(w, r, func(c *cart.Store) { edit(c, id) })
}

type noteRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleSetNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	s.editCart(w, r, func(c *cart.Store) { c.SetNote(req.Note) })
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s.editCart(w, r, (*cart.Store).Clear)
}
