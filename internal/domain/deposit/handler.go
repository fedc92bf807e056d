package deposit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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

type claimRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	c, err := h.svc.Request(r.Context(), userID, req.AmountCents)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "deposit amount must be positive")
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, c)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	claims, err := h.svc.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, claims)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	claims, err := h.svc.ListPending(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, claims)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	if adminID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid claim id")
		return
	}

	c, err := h.svc.Approve(r.Context(), adminID, claimID)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	response.OK(w, c)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	if adminID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid claim id")
		return
	}

	c, err := h.svc.Reject(r.Context(), adminID, claimID)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	response.OK(w, c)
}

func (h *Handler) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrClaimNotFound):
		response.NotFound(w, "deposit claim not found")
	case errors.Is(err, ErrAlreadyProcessed):
		response.Conflict(w, "deposit claim already processed")
	default:
		response.InternalError(w)
	}
}

// Routes serves the user-facing claim endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Request)
	r.Get("/", h.List)
	return r
}

// AdminRoutes serves the reconciliation endpoints; the caller mounts them
// behind the admin gate.
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Get("/pending", h.ListPending)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	return r
}
