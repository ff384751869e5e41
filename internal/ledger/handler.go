package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tally/internal/expense"
	"github.com/fkhayef/tally/internal/expense/split"
	"github.com/fkhayef/tally/internal/lock"
	"github.com/fkhayef/tally/pkg/middleware"
	"github.com/fkhayef/tally/pkg/pagination"
	"github.com/fkhayef/tally/pkg/response"
)

// Handler handles HTTP requests for expense and ledger operations
type Handler struct {
	service *Service
}

// NewHandler creates a new ledger handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for expense endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Get("/scope/{scope}", h.ListByScope)

	return r
}

// RecomputeRoutes returns the router for the recompute repair endpoint
func (h *Handler) RecomputeRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{scope}", h.Recompute)

	return r
}

// Create handles POST /expenses
// @Summary      Post a new expense
// @Description  Post an immutable expense; splits are derived by the equal, exact, or percentage strategy and applied to the pairwise ledger
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        request body CreateExpenseRequest true "Expense creation request"
// @Success      201 {object} expense.Expense
// @Failure      400 {object} response.ErrorBody
// @Failure      403 {object} response.ErrorBody
// @Failure      503 {object} response.ErrorBody
// @Router       /expenses [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "authenticated user required")
		return
	}

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	in := PostExpenseInput{
		Scope:        req.Scope,
		PayerID:      payerID,
		Description:  req.Description,
		Amount:       req.Amount,
		SplitMode:    req.SplitMode,
		Participants: req.Participants,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	exp, err := h.service.PostExpense(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, exp)
}

// GetByID handles GET /expenses/{id}
// @Summary      Get expense by ID
// @Description  Get an expense with its derived splits
// @Tags         expenses
// @Produce      json
// @Param        id path string true "Expense ID"
// @Success      200 {object} expense.Expense
// @Failure      404 {object} response.ErrorBody
// @Router       /expenses/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	exp, err := h.service.GetExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if exp == nil {
		response.NotFound(w, "expense not found")
		return
	}

	response.JSON(w, http.StatusOK, exp)
}

// ListByScope handles GET /expenses/scope/{scope}
// @Summary      List a scope's expenses
// @Description  Page through a scope's expenses, newest first, with an opaque cursor
// @Tags         expenses
// @Produce      json
// @Param        scope path string true "Group ID or direct"
// @Param        limit query int false "Page size (max 100)"
// @Param        cursor query string false "Opaque cursor from a previous page"
// @Success      200 {object} response.PageBody{data=[]expense.Expense}
// @Failure      400 {object} response.ErrorBody
// @Router       /expenses/scope/{scope} [get]
func (h *Handler) ListByScope(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = pagination.ClampLimit(limit)

	var after *pagination.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := pagination.Decode(raw)
		if err != nil {
			response.BadRequest(w, "invalid cursor")
			return
		}
		after = &cursor
	}

	expenses, err := h.service.ListExpenses(r.Context(), scope, limit, after)
	if err != nil {
		h.writeError(w, err)
		return
	}

	page := &response.Pagination{Limit: limit}
	if len(expenses) > limit {
		expenses = expenses[:limit]
		page.HasMore = true
		last := expenses[limit-1]
		cursor := pagination.Encode(pagination.Cursor{
			SortValue: last.CreatedAt.Format(time.RFC3339Nano),
			ID:        last.ID,
		})
		page.NextCursor = &cursor
	}
	if expenses == nil {
		expenses = []*expense.Expense{}
	}

	response.Page(w, http.StatusOK, expenses, page)
}

// Recompute handles POST /ledger/recompute/{scope}
// @Summary      Rebuild a scope's balances
// @Description  Replay the scope's expense and settlement logs and atomically replace its stored balances
// @Tags         ledger
// @Produce      json
// @Param        scope path string true "Group ID or direct"
// @Success      200 {object} RecomputeResponse
// @Failure      503 {object} response.ErrorBody
// @Router       /ledger/recompute/{scope} [post]
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	if err := h.service.Recompute(r.Context(), scope); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, RecomputeResponse{Scope: scope, Recomputed: true})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	WriteError(w, err, h.service.RetryAfterSeconds())
}

// WriteError maps service errors to the stable error slugs. Shared by every
// handler that calls into the ledger service.
func WriteError(w http.ResponseWriter, err error, retryAfterSeconds int) {
	switch {
	case errors.Is(err, split.ErrInvalidSplit):
		response.InvalidSplit(w, err.Error())
	case errors.Is(err, ErrNotMember):
		response.NotMember(w, err.Error())
	case errors.Is(err, ErrInvalidSettlement):
		response.InvalidSettlement(w, err.Error())
	case errors.Is(err, ErrScopeRequired):
		response.BadRequest(w, err.Error())
	case errors.Is(err, lock.ErrLockTimeout), errors.Is(err, lock.ErrLeaseLost):
		response.LockTimeout(w, retryAfterSeconds)
	default:
		response.StoreUnavailable(w)
	}
}

