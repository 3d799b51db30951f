package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"go.uber.org/zap"
)

// Catalog is the read-only menu source.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, categoryID int64, page, pageSize int) (*store.OffsetPage, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// OrderReader serves the confirmation screen and the session's order history.
type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, ids []int64) ([]models.Order, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	catalog  Catalog
	orders   OrderReader
	sessions *Sessions
	db       Pinger
	timeout  time.Duration
	logger   *zap.Logger
}

func NewServer(catalog Catalog, orders OrderReader, sessions *Sessions, db Pinger, timeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog:  catalog,
		orders:   orders,
		sessions: sessions,
		db:       db,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", s.handleListCategories)
			r.Get("/products", s.handleListProducts)
			r.Get("/products/{id}", s.handleGetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.sessions.Middleware)

			// orders are only visible to the session that placed them
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", s.handleListOrders)
				r.Get("/{id}", s.handleGetOrder)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.handleGetCart)
				r.Delete("/", s.handleClearCart)
				r.Post("/items", s.handleAddItem)
				r.Post("/items/{id}/decrement", s.handleDecrementItem)
				r.Delete("/items/{id}", s.handleRemoveItem)
				r.Put("/note", s.handleSetNote)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", s.handleGetCheckout)
				r.Post("/start", s.handleStartCheckout)
				r.Post("/method", s.handleChooseMethod)
				r.Post("/paid", s.handleConfirmPaid)
				r.Post("/continue", s.handleContinue)
				r.Post("/back", s.handleBack)
				r.Post("/cancel", s.handleCancel)
				r.Put("/contact", s.handleSetContact)
				r.Post("/submit", s.handleSubmit)
				r.Post("/new-order", s.handleStartNewOrder)
				r.Post("/exit", s.handleReturnToMenu)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondDomainError maps cart, checkout and store errors onto HTTP statuses.
// Persistence failures get a generic message; the cause is only logged.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  verr.Error(),
			Code:   "validation_failed",
			Fields: verr.Invalid(),
		})
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		respondError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, checkout.ErrCartLocked):
		respondError(w, http.StatusConflict, "cart_locked", err.Error())
	case errors.Is(err, checkout.ErrOrderNotPlaced):
		s.logger.Error("order not placed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "order_not_placed", checkout.ErrOrderNotPlaced.Error())
	case errors.Is(err, database.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, database.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	if max > 0 && v > max {
		return def
	}
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}
