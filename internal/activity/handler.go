package activity

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tally/pkg/middleware"
	"github.com/fkhayef/tally/pkg/pagination"
	"github.com/fkhayef/tally/pkg/response"
)

// Handler handles HTTP requests for the activity feed
type Handler struct {
	service *Service
}

// NewHandler creates a new activity handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for activity endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.MyFeed)
	r.Get("/scope/{scope}", h.ScopeFeed)

	return r
}

// MyFeed handles GET /activity
// @Summary      Get the caller's activity feed
// @Description  Page through the caller's events, newest first, with an opaque cursor
// @Tags         activity
// @Produce      json
// @Param        limit query int false "Page size (max 100)"
// @Param        cursor query string false "Opaque cursor from a previous page"
// @Success      200 {object} response.PageBody{data=[]Event}
// @Failure      401 {object} response.ErrorBody
// @Router       /activity [get]
func (h *Handler) MyFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "authenticated user required")
		return
	}

	limit, after, ok := parsePage(w, r)
	if !ok {
		return
	}

	feed, err := h.service.UserFeed(r.Context(), userID, limit, after)
	if err != nil {
		response.StoreUnavailable(w)
		return
	}

	writeFeed(w, feed, limit)
}

// ScopeFeed handles GET /activity/scope/{scope}
// @Summary      Get a scope's activity feed
// @Tags         activity
// @Produce      json
// @Param        scope path string true "Group ID or direct"
// @Param        limit query int false "Page size (max 100)"
// @Param        cursor query string false "Opaque cursor from a previous page"
// @Success      200 {object} response.PageBody{data=[]Event}
// @Router       /activity/scope/{scope} [get]
func (h *Handler) ScopeFeed(w http.ResponseWriter, r *http.Request) {
	limit, after, ok := parsePage(w, r)
	if !ok {
		return
	}

	feed, err := h.service.ScopeFeed(r.Context(), chi.URLParam(r, "scope"), limit, after)
	if err != nil {
		response.StoreUnavailable(w)
		return
	}

	writeFeed(w, feed, limit)
}

func parsePage(w http.ResponseWriter, r *http.Request) (int, *pagination.Cursor, bool) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = pagination.ClampLimit(limit)

	var after *pagination.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := pagination.Decode(raw)
		if err != nil {
			response.BadRequest(w, "invalid cursor")
			return 0, nil, false
		}
		after = &cursor
	}
	return limit, after, true
}

func writeFeed(w http.ResponseWriter, feed *FeedPage, limit int) {
	events := feed.Events
	if events == nil {
		events = []*Event{}
	}
	response.Page(w, http.StatusOK, events, &response.Pagination{
		Limit:      limit,
		HasMore:    feed.HasMore,
		NextCursor: feed.NextCursor,
	})
}
