package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/api"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/appctx"
)

// MaxBodyBytes limits JSON request bodies.
const MaxBodyBytes = 64 << 10

const healthTimeout = 2 * time.Second

// registerRequest is the POST body for a sign-up.
type registerRequest struct {
	Email    string         `json:"email"`
	Source   string         `json:"source"`
	Referrer string         `json:"referrer"`
	UTM      *UTM           `json:"utm"`
	Metadata map[string]any `json:"metadata"`
}

// updateRequest is the PATCH body for a status update.
type updateRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Handler exposes the waitlist Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a waitlist HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register handles POST /waitlist.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	referrer := req.Referrer
	if referrer == "" {
		referrer = r.Referer()
	}

	entry, err := h.svc.Register(r.Context(), RegisterRequest{
		Email:  req.Email,
		Source: Source(req.Source),
		Metadata: Metadata{
			IPAddress: appctx.ClientIP(r.Context()),
			UserAgent: r.UserAgent(),
			Referrer:  referrer,
			UTM:       req.UTM,
			Extra:     req.Metadata,
		},
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	appctx.GetLogger(r.Context()).Info("waitlist registration", "id", entry.ID, "position", entry.Position, "source", entry.Source)
	api.WriteJSON(w, http.StatusCreated, entry)
}

// List handles GET /waitlist?page&limit&status&search.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		writeServiceError(w, r, invalid("page", "must be an integer"))
		return
	}
	limit, err := intParam(q.Get("limit"), h.svc.DefaultLimit())
	if err != nil {
		writeServiceError(w, r, invalid("limit", "must be an integer"))
		return
	}
	if limit < 1 {
		writeServiceError(w, r, invalid("limit", "must be at least 1"))
		return
	}

	result, err := h.svc.ListEntries(r.Context(), ListQuery{
		Page:   page,
		Limit:  limit,
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, result)
}

// Stats handles GET /waitlist/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, stats)
}

// Update handles PATCH /waitlist/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var upd UpdateRequest
	if req.Status != nil {
		st := Status(*req.Status)
		upd.Status = &st
	}
	upd.Notes = req.Notes

	entry, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	appctx.GetLogger(r.Context()).Info("waitlist entry updated", "id", entry.ID, "status", entry.Status)
	api.WriteJSON(w, http.StatusOK, entry)
}

// Health handles GET /health and reports storage connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		appctx.GetLogger(r.Context()).Warn("health check: storage unreachable", "error", err)
		api.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Database: "disconnected"})
		return
	}
	api.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "connected"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.WriteTooLarge(w, "request body too large")
			return false
		}
		appctx.GetLogger(r.Context()).Debug("rejecting malformed request body", "error", err)
		api.WriteBadRequest(w, api.ReasonBadRequest, "request body must be a JSON object")
		return false
	}
	return true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// writeServiceError maps service errors onto the API error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		api.WriteBadRequest(w, api.ReasonInvalidField, verr.Error())
	case errors.Is(err, ErrDuplicateEmail):
		api.WriteConflict(w, api.ReasonAlreadyRegistered, "This email is already on the waitlist")
	case errors.Is(err, ErrEntryNotFound):
		api.WriteNotFound(w, "waitlist entry not found")
	default:
		appctx.GetLogger(r.Context()).Error("waitlist operation failed", "error", err)
		api.WriteInternalError(w, "internal server error")
	}
}
