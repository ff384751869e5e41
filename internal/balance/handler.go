package balance

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tally/pkg/middleware"
	"github.com/fkhayef/tally/pkg/response"
)

// Handler handles HTTP requests for balance reads
type Handler struct {
	service *Service
}

// NewHandler creates a new balance handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for balance endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Get("/scope/{scope}", h.Scope)

	return r
}

// Me handles GET /balances/me
// @Summary      Get the caller's aggregated balances
// @Description  Totals and per-counterparty positions across every scope. fresh=true bypasses the cache.
// @Tags         balances
// @Produce      json
// @Param        fresh query bool false "Bypass the cache and read the store"
// @Success      200 {object} UserView
// @Failure      401 {object} response.ErrorBody
// @Failure      503 {object} response.ErrorBody
// @Router       /balances/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "authenticated user required")
		return
	}

	view, err := h.service.GetUserView(r.Context(), userID, r.URL.Query().Get("fresh") == "true")
	if err != nil {
		response.StoreUnavailable(w)
		return
	}

	response.JSON(w, http.StatusOK, view)
}

// Scope handles GET /balances/scope/{scope}
// @Summary      Get a scope's pairwise balances
// @Description  Every live debtor/creditor pair inside one scope
// @Tags         balances
// @Produce      json
// @Param        scope path string true "Group ID or direct"
// @Param        fresh query bool false "Bypass the cache and read the store"
// @Success      200 {object} ScopeMatrix
// @Failure      503 {object} response.ErrorBody
// @Router       /balances/scope/{scope} [get]
func (h *Handler) Scope(w http.ResponseWriter, r *http.Request) {
	matrix, err := h.service.GetScopeMatrix(r.Context(), chi.URLParam(r, "scope"), r.URL.Query().Get("fresh") == "true")
	if err != nil {
		response.StoreUnavailable(w)
		return
	}

	response.JSON(w, http.StatusOK, matrix)
}
