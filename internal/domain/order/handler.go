package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smsrent/smsrent-api/internal/domain/wallet"
	"github.com/smsrent/smsrent-api/internal/middleware"
	"github.com/smsrent/smsrent-api/internal/pkg/response"
	"github.com/smsrent/smsrent-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type purchaseRequest struct {
	ServiceKey string `json:"service_key" validate:"required,service_key"`
	Country    string `json:"country" validate:"country_code"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if req.Country == "" {
		req.Country = "US"
	}

	o, err := h.svc.RequestPurchase(r.Context(), userID, req.ServiceKey, req.Country)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientFunds):
			response.Error(w, http.StatusConflict, "INSUFFICIENT_FUNDS", "insufficient wallet balance")
		case errors.Is(err, ErrServiceUnavailable):
			response.ServiceUnavailable(w, "service currently unavailable, try another service")
		case errors.Is(err, wallet.ErrWalletFrozen), errors.Is(err, wallet.ErrInvariantViolation):
			response.Error(w, http.StatusInternalServerError, "WALLET_FROZEN", "wallet requires operator review")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, o)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	o, err := h.svc.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrNotOwner):
			response.NotFound(w, "order not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, o)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.svc.ListOrders(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, orders)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	o, err := h.svc.Cancel(r.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrNotOwner):
			response.NotFound(w, "order not found")
		case errors.Is(err, ErrNotCancellable):
			response.Conflict(w, "order is no longer cancellable")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, o)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Purchase)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}
