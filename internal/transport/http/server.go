package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/StorefrontFeed/internal/app"
	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/feed"
	"github.com/StorefrontFeed/internal/navigation"
	"github.com/StorefrontFeed/internal/session"
	"github.com/StorefrontFeed/pkg/config"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports the state of the service's dependencies.
type ReadinessChecker interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// Handler serves the storefront feed API.
type Handler struct {
	feeds     *app.FeedService
	products  domain.ProductReader
	readiness ReadinessChecker
	validator *Validator
}

func NewHandler(feeds *app.FeedService, products domain.ProductReader, readiness ReadinessChecker) *Handler {
	return &Handler{
		feeds:     feeds,
		products:  products,
		readiness: readiness,
		validator: NewValidator(),
	}
}

type mountRequest struct {
	Category string            `json:"category" validate:"required"`
	Query    string            `json:"query" validate:"max=200"`
	Sort     domain.SortOption `json:"sort"`
}

func (m mountRequest) filter() domain.Filter {
	return domain.Filter{Category: m.Category, Query: m.Query, Sort: m.Sort}
}

type mountResponse struct {
	ID   uuid.UUID     `json:"id"`
	Feed feed.Snapshot `json:"feed"`
}

type signalResponse struct {
	Issued bool          `json:"issued"`
	Feed   feed.Snapshot `json:"feed"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Role          session.Role `json:"role,omitempty"`
	Roles         []string     `json:"roles"`
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *Handler, sessionCookie string) *mux.Router {
	r := mux.NewRouter()
	r.Use(SessionMiddleware(sessionCookie))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, "OK"); err != nil {
			slog.Warn("Failed to write health response", "error", err)
		}
	}).Methods("GET")
	r.HandleFunc("/ready", h.ready).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/feeds", h.mountFeed).Methods("POST")
	r.HandleFunc("/feeds/{id}", h.getFeed).Methods("GET")
	r.HandleFunc("/feeds/{id}", h.unmountFeed).Methods("DELETE")
	r.HandleFunc("/feeds/{id}/filter", h.changeFilter).Methods("PUT")
	r.HandleFunc("/feeds/{id}/scroll", h.scrollFeed).Methods("POST")
	r.HandleFunc("/feeds/{id}/next", h.nextPage).Methods("POST")
	r.HandleFunc("/feeds/{id}/retry", h.retryFeed).Methods("POST")

	r.HandleFunc("/products/{id}", h.getProduct).Methods("GET")
	r.HandleFunc("/menu", h.menu).Methods("GET")
	r.HandleFunc("/session", h.session).Methods("GET")
	return r
}

func NewHTTPServer(cfg *config.Config, h *Handler) *http.Server {
	return &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: NewRouter(h, cfg.SessionCookie),
	}
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	status, ok := h.readiness.Check(r.Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handler) mountFeed(w http.ResponseWriter, r *http.Request) {
	var req mountRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, snap, err := h.feeds.Mount(r.Context(), req.filter())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mountResponse{ID: id, Feed: snap})
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := feedID(w, r)
	if !ok {
		return
	}
	snap, err := h.feeds.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) changeFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := feedID(w, r)
	if !ok {
		return
	}
	var req mountRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.feeds.ChangeFilter(r.Context(), id, req.filter())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) scrollFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := feedID(w, r)
	if !ok {
		return
	}
	var v feed.Viewport
	if !h.decode(w, r, &v) {
		return
	}
	issued, snap, err := h.feeds.Scroll(r.Context(), id, v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signalResponse{Issued: issued, Feed: snap})
}

func (h *Handler) nextPage(w http.ResponseWriter, r *http.Request) {
	id, ok := feedID(w, r)
	if !ok {
		return
	}
	issued, snap, err := h.feeds.Next(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signalResponse{Issued: issued, Feed: snap})
}

func (h *Handler) retryFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := feedID(w, r)
	if !ok {
		return
	}
	snap, err := h.feeds.Retry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) unmountFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := feedID(w, r)
	if !ok {
		return
	}
	if err := h.feeds.Unmount(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, navigation.MenuFor(session.FromContext(r.Context())))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	resp := sessionResponse{Authenticated: s.Authenticated(), Roles: s.Roles}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	if s.Authenticated() {
		resp.Role = s.Role()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	if err := h.validator.Validate(dst); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func feedID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrFeedNotFound.Error()})
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrFeedNotFound), errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrTooManyFeeds):
		code = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnknownCategory), errors.As(err, &validationErrs):
		code = http.StatusBadRequest
	default:
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
