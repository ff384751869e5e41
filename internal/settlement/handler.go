package settlement

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tally/internal/ledger"
	"github.com/fkhayef/tally/internal/money"
	"github.com/fkhayef/tally/pkg/middleware"
	"github.com/fkhayef/tally/pkg/response"
)

// SettleRequest is the body of POST /settlements. DebtorID defaults to the
// authenticated caller; a creditor recording a repayment received sets it to
// the payer. The caller must be one of the two parties.
type SettleRequest struct {
	Scope      string      `json:"scope"`
	DebtorID   string      `json:"debtorId"`
	CreditorID string      `json:"creditorId"`
	Amount     money.Money `json:"amount"`
}

// Handler handles HTTP requests for settlements and settlement plans
type Handler struct {
	ledger  *ledger.Service
	planner *Service
}

// NewHandler creates a new settlement handler
func NewHandler(ledgerService *ledger.Service, planner *Service) *Handler {
	return &Handler{ledger: ledgerService, planner: planner}
}

// Routes returns the router for settlement endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Settle)
	r.Get("/plan", h.Plan)

	return r
}

// Settle handles POST /settlements
// @Summary      Record a repayment
// @Description  Reduce an existing debt from the debtor to the creditor. The caller must be the debtor or the creditor. Overpaying or settling a pair with no debt is rejected.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Param        request body SettleRequest true "Settlement request"
// @Success      201 {object} ledger.Settlement
// @Failure      400 {object} response.ErrorBody
// @Failure      403 {object} response.ErrorBody
// @Failure      503 {object} response.ErrorBody
// @Router       /settlements [post]
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "authenticated user required")
		return
	}

	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.DebtorID == "" {
		req.DebtorID = callerID
	}
	if callerID != req.DebtorID && callerID != req.CreditorID {
		response.Forbidden(w, "caller must be a party to the settlement")
		return
	}

	settlement, err := h.ledger.Settle(r.Context(), req.Scope, req.DebtorID, req.CreditorID, req.Amount)
	if err != nil {
		ledger.WriteError(w, err, h.ledger.RetryAfterSeconds())
		return
	}

	response.JSON(w, http.StatusCreated, settlement)
}

// Plan handles GET /settlements/plan
// @Summary      Suggest settling transfers
// @Description  Minimal transfer list settling one scope when scope is given, or everything the caller participates in when global=true (also the default when scope is omitted). Advice only; nothing is written.
// @Tags         settlements
// @Produce      json
// @Param        scope query string false "Group ID or direct"
// @Param        global query bool false "Plan across every scope the caller participates in"
// @Param        fresh query bool false "Bypass the cache and read the store"
// @Success      200 {object} PlanResult
// @Failure      400 {object} response.ErrorBody
// @Failure      401 {object} response.ErrorBody
// @Failure      503 {object} response.ErrorBody
// @Router       /settlements/plan [get]
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	fresh := r.URL.Query().Get("fresh") == "true"
	global := r.URL.Query().Get("global") == "true"
	scope := r.URL.Query().Get("scope")

	if global && scope != "" {
		response.BadRequest(w, "scope and global are mutually exclusive")
		return
	}
	if scope != "" {
		result, err := h.planner.PlanForScope(r.Context(), scope, fresh)
		if err != nil {
			response.StoreUnavailable(w)
			return
		}
		response.JSON(w, http.StatusOK, result)
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "authenticated user required")
		return
	}
	result, err := h.planner.PlanForUser(r.Context(), userID, fresh)
	if err != nil {
		response.StoreUnavailable(w)
		return
	}
	response.JSON(w, http.StatusOK, result)
}
