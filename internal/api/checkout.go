package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/models"
)

type checkoutView struct {
	Session checkout.Session  `json:"session"`
	Details *checkout.Details `json:"details,omitempty"`
	Cart    cartView          `json:"cart"`
}

func (s *Server) respondCheckout(w http.ResponseWriter, r *http.Request, status int) {
	sess := sessionFrom(r.Context())
	flow := sess.Flow()

	view := checkoutView{
		Session: flow.Session(),
		Cart:    newCartView(sess.Cart.Snapshot()),
	}
	if view.Session.State == checkout.StateMethodDetails {
		if details, err := flow.Details(); err == nil {
			view.Details = &details
		}
	}
	respondJSON(w, status, view)
}

func (s *Server) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	s.respondCheckout(w, r, http.StatusOK)
}

// step runs a single flow event and answers with the resulting checkout view.
func (s *Server) step(event func(*checkout.Flow) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow := sessionFrom(r.Context()).Flow()
		if err := event(flow); err != nil {
			s.respondDomainError(w, r, err)
			return
		}
		s.respondCheckout(w, r, http.StatusOK)
	}
}

func (s *Server) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	s.step((*checkout.Flow).StartCheckout)(w, r)
}

func (s *Server) handleConfirmPaid(w http.ResponseWriter, r *http.Request) {
	s.step((*checkout.Flow).ConfirmPaid)(w, r)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	s.step((*checkout.Flow).Continue)(w, r)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.step((*checkout.Flow).Back)(w, r)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.step((*checkout.Flow).Cancel)(w, r)
}

func (s *Server) handleStartNewOrder(w http.ResponseWriter, r *http.Request) {
	s.step((*checkout.Flow).StartNewOrder)(w, r)
}

func (s *Server) handleReturnToMenu(w http.ResponseWriter, r *http.Request) {
	flow := sessionFrom(r.Context()).Flow()
	if err := flow.ReturnToMenu(); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	// the exited flow is swapped for a fresh one on the next request
	respondJSON(w, http.StatusOK, checkoutView{
		Session: flow.Session(),
		Cart:    newCartView(sessionFrom(r.Context()).Cart.Snapshot()),
	})
}

type methodRequest struct {
	Method models.PaymentMethod `json:"method"`
}

func (s *Server) handleChooseMethod(w http.ResponseWriter, r *http.Request) {
	var req methodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	s.step(func(f *checkout.Flow) error {
		return f.ChooseMethod(req.Method)
	})(w, r)
}

type contactRequest struct {
	ClientName       string `json:"client_name"`
	ClientPhone      string `json:"client_phone"`
	PaymentReference string `json:"payment_ref"`
}

func (s *Server) handleSetContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	s.step(func(f *checkout.Flow) error {
		return f.SetContact(req.ClientName, req.ClientPhone, req.PaymentReference)
	})(w, r)
}

type submitResponse struct {
	Order   *models.Order    `json:"order"`
	Session checkout.Session `json:"session"`
}

// handleSubmit accepts the contact fields in the body as a convenience, so
// the form can be sent in a single request. A non-empty body replaces the
// saved fields.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	flow := sessionFrom(r.Context()).Flow()

	var req contactRequest
	switch err := decodeJSON(w, r, &req); {
	case errors.Is(err, io.EOF):
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	case req == (contactRequest{}):
		// an empty body keeps the fields saved with PUT /contact
	case flow.State() == checkout.StateContactForm:
		if err := flow.SetContact(req.ClientName, req.ClientPhone, req.PaymentReference); err != nil {
			s.respondDomainError(w, r, err)
			return
		}
	}

	order, err := flow.Submit(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	sessionFrom(r.Context()).recordOrder(order.ID)
	respondJSON(w, http.StatusCreated, submitResponse{Order: order, Session: flow.Session()})
}
