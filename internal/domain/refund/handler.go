package refund

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smsrent/smsrent-api/internal/domain/order"
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

type refundRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	created, err := h.svc.Request(r.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrNotOwner):
			response.NotFound(w, "order not found")
		case errors.Is(err, ErrOrderNotRefundable):
			response.Conflict(w, "order is not in a refundable state")
		case errors.Is(err, ErrAlreadyRefunded):
			response.Conflict(w, "order was already refunded")
		case errors.Is(err, ErrOpenRequestExists):
			response.Conflict(w, "order already has an open refund request")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, created)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reqs, err := h.svc.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, reqs)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.ListPending(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, reqs)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	if adminID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid request id")
		return
	}

	req, err := h.svc.Approve(r.Context(), adminID, requestID)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	response.OK(w, req)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	if adminID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid request id")
		return
	}

	req, err := h.svc.Reject(r.Context(), adminID, requestID)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	response.OK(w, req)
}

func (h *Handler) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		response.NotFound(w, "refund request not found")
	case errors.Is(err, ErrAlreadyProcessed):
		response.Conflict(w, "refund request already processed")
	default:
		response.InternalError(w)
	}
}

// Routes serves the user-facing refund request endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Request)
	r.Get("/", h.List)
	return r
}

// AdminRoutes serves the reconciliation endpoints behind the admin gate.
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Get("/pending", h.ListPending)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	return r
}
