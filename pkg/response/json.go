package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Error slugs are part of the public contract; clients match on them.
const (
	SlugInvalidSplit      = "invalid_split"
	SlugNotMember         = "not_member"
	SlugInvalidSettlement = "invalid_settlement"
	SlugLockTimeout       = "lock_timeout"
	SlugStoreUnavailable  = "store_unavailable"
	SlugNotFound          = "not_found"
	SlugBadRequest        = "bad_request"
	SlugConflict          = "conflict"
	SlugUnauthorized      = "unauthorized"
	SlugForbidden         = "forbidden"
)

// ErrorBody is the uniform error response shape.
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// Pagination is the cursor metadata attached to list responses.
type Pagination struct {
	Limit      int     `json:"limit"`
	HasMore    bool    `json:"hasMore"`
	NextCursor *string `json:"nextCursor"`
	PrevCursor *string `json:"prevCursor"`
}

// PageBody wraps a paginated list.
type PageBody struct {
	Data       interface{} `json:"data"`
	Pagination *Pagination `json:"pagination"`
}

// JSON sends data as-is with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Page sends a cursor-paginated list response
func Page(w http.ResponseWriter, status int, data interface{}, p *Pagination) {
	JSON(w, status, PageBody{Data: data, Pagination: p})
}

// Error sends an error response with a stable slug
func Error(w http.ResponseWriter, status int, slug, message string) {
	JSON(w, status, ErrorBody{Error: slug, Message: message})
}

// Common error responses
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, SlugBadRequest, message)
}

func InvalidSplit(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, SlugInvalidSplit, message)
}

func NotMember(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, SlugNotMember, message)
}

func InvalidSettlement(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, SlugInvalidSettlement, message)
}

// LockTimeout tells the client the scope is contended and when to retry.
func LockTimeout(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(ErrorBody{
		Error:      SlugLockTimeout,
		Message:    "could not acquire scope lock, retry shortly",
		RetryAfter: retryAfterSeconds,
	})
}

func StoreUnavailable(w http.ResponseWriter) {
	Error(w, http.StatusServiceUnavailable, SlugStoreUnavailable, "balance store unavailable")
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, SlugNotFound, message)
}

func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, SlugConflict, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, SlugUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, SlugForbidden, message)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, "internal_error", message)
}
